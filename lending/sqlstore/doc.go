// Package sqlstore provides a durable lending.Store on PostgreSQL or SQLite.
//
// The store keeps three tables, books, loans and reservations. The books row carries the
// derived availability, the current promotion hold and a version number. SaveBook runs in one
// transaction: it first updates the books row guarded by the expected version, which fails with
// core.ErrConcurrencyConflict if another writer got there first, and then writes every loan and
// reservation the record touched.
//
// Queries are built with goqu and executed through one of the adapters in internal/adapters,
// so the store works with a pgxpool.Pool, a sql.DB or a sqlx.DB:
//
//	store, err := sqlstore.NewStoreFromPGXPool(pool, sqlstore.WithLogger(slog.Default()))
//	store, err := sqlstore.NewStoreFromSQLDB(db, sqlstore.WithDialect(sqlstore.DialectSQLite))
//
// Times are stored as unix microseconds and money as decimal text, so the schema is identical
// on both databases.
package sqlstore
