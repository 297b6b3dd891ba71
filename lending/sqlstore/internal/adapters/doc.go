// Package adapters provide database adapter implementations for the SQL lending store.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, including transactions, so the store can save a book, its loans
// and its reservations atomically with any supported connection type.
package adapters
