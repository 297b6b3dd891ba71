package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending/sqlstore/internal/adapters"
)

const (
	tableBooks        = "books"
	tableLoans        = "loans"
	tableReservations = "reservations"

	colID                = "id"
	colTitle             = "title"
	colAuthor            = "author"
	colCategory          = "category"
	colISBN              = "isbn"
	colDescription       = "description"
	colCoverURL          = "cover_url"
	colShelf             = "shelf"
	colPublishedYear     = "published_year"
	colPages             = "pages"
	colIsFree            = "is_free"
	colPDFURL            = "pdf_url"
	colAvailability      = "availability"
	colHoldReservationID = "hold_reservation_id"
	colHoldUserID        = "hold_user_id"
	colHoldGrantedAt     = "hold_granted_at"
	colHoldExpiresAt     = "hold_expires_at"
	colVersion           = "version"
	colBookID            = "book_id"
	colUserID            = "user_id"
	colBorrowedAt        = "borrowed_at"
	colDueAt             = "due_at"
	colReturnedAt        = "returned_at"
	colRenewalCount      = "renewal_count"
	colFine              = "fine"
	colFineSettledAt     = "fine_settled_at"
	colReservedAt        = "reserved_at"
	colQueuePosition     = "queue_position"
	colIsActive          = "is_active"
	colEndedAt           = "ended_at"
	colEndReason         = "end_reason"

	logMsgBuildQueryFailed    = "failed to build sql statement"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgDBExecFailed        = "database execution failed"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgRowsAffectedFailed  = "failed to get rows affected count"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgBookSaved           = "book saved"
	logMsgBookInserted        = "book inserted"
	logMsgSchemaMigrated      = "schema migrated"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "lending store operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrBookID             = "book_id"
	logAttrVersion            = "version"
	logAttrLoanCount          = "loan_count"
	logAttrReservationCount   = "reservation_count"
	logAttrStatementCount     = "statement_count"
	logAttrDurationMS         = "duration_ms"
	logActionSelect           = "select"
	logActionInsert           = "insert"
	logActionUpdate           = "update"
)

type sqlStatement interface {
	ToSQL() (string, []any, error)
}

// Store is a lending.Store on top of a relational database. Postgres is the primary target,
// sqlite3 serves local setups and tests.
type Store struct {
	db      adapters.DBAdapter
	dialect string
	logger  Logger
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options)
}

func newStore(db adapters.DBAdapter, options []Option) (Store, error) {
	s := Store{
		db:      db,
		dialect: DialectPostgres,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// InsertBook adds a new catalog entry with version 0.
func (s Store) InsertBook(ctx context.Context, book core.Book) error {
	exists, err := s.bookExists(ctx, book.ID)
	if err != nil {
		return err
	}

	if exists {
		return core.ErrBookExists
	}

	book.Availability = core.Available
	record := merge(bookValues(book), holdValues(nil), goqu.Record{colID: string(book.ID), colVersion: int64(0)})

	if _, err := s.exec(ctx, s.db, s.builder().Insert(tableBooks).Rows(record), logActionInsert); err != nil {
		return err
	}

	s.logOperation(logMsgBookInserted, logAttrBookID, book.ID)

	return nil
}

// LoadBook returns the book together with its active loan, its active reservations and its hold.
func (s Store) LoadBook(ctx context.Context, id core.BookID) (core.BookRecord, error) {
	return s.loadBook(ctx, s.db, id)
}

// ListBooks returns every book record ordered by id.
func (s Store) ListBooks(ctx context.Context) ([]core.BookRecord, error) {
	books, err := s.queryBooks(ctx, s.db, s.selectBooks().Order(goqu.I(colID).Asc()))
	if err != nil {
		return nil, err
	}

	loans, err := s.queryLoans(ctx, s.db, s.selectLoans().Where(goqu.C(colReturnedAt).IsNull()))
	if err != nil {
		return nil, err
	}

	reservations, err := s.queryReservations(ctx, s.db, s.selectReservations().
		Where(goqu.C(colIsActive).Eq(1)).
		Order(goqu.I(colBookID).Asc(), goqu.I(colQueuePosition).Asc()))
	if err != nil {
		return nil, err
	}

	index := make(map[core.BookID]int, len(books))
	for i := range books {
		index[books[i].Book.ID] = i
	}

	for _, loan := range loans {
		if i, ok := index[loan.BookID]; ok {
			l := loan
			books[i].ActiveLoan = &l
		}
	}

	for _, res := range reservations {
		if i, ok := index[res.BookID]; ok {
			books[i].Queue = append(books[i].Queue, res)
		}
	}

	return books, nil
}

// SaveBook writes the record and its touched loans and reservations in one transaction, guarded by
// the version the record was loaded at.
func (s Store) SaveBook(ctx context.Context, rec core.BookRecord) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}

		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && s.logger != nil {
			s.logger.Warn(logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}()

	update := s.builder().Update(tableBooks).
		Set(merge(
			goqu.Record{colAvailability: string(rec.Book.Availability), colVersion: rec.Version + 1},
			holdValues(rec.Hold),
		)).
		Where(goqu.C(colID).Eq(string(rec.Book.ID)), goqu.C(colVersion).Eq(rec.Version))

	rowsAffected, err := s.exec(ctx, tx, update, logActionUpdate)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		s.logOperation(logMsgConcurrencyConflict, logAttrBookID, rec.Book.ID, logAttrVersion, rec.Version)
		return core.ErrConcurrencyConflict
	}

	changes := rec.Changes()

	for _, loan := range changes.Loans {
		if err := s.updateOrInsert(ctx, tx, tableLoans, string(loan.ID), loanValues(loan)); err != nil {
			return err
		}
	}

	for _, res := range changes.Reservations {
		if err := s.updateOrInsert(ctx, tx, tableReservations, string(res.ID), reservationValues(res)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}
	committed = true

	s.logOperation(
		logMsgBookSaved,
		logAttrBookID, rec.Book.ID,
		logAttrVersion, rec.Version+1,
		logAttrLoanCount, len(changes.Loans),
		logAttrReservationCount, len(changes.Reservations),
		logAttrDurationMS, s.durationToMilliseconds(time.Since(start)))

	return nil
}

// Loan returns any loan, active or historical.
func (s Store) Loan(ctx context.Context, id core.LoanID) (core.Loan, error) {
	loans, err := s.queryLoans(ctx, s.db, s.selectLoans().Where(goqu.C(colID).Eq(string(id))))
	if err != nil {
		return core.Loan{}, err
	}

	if len(loans) == 0 {
		return core.Loan{}, core.ErrLoanNotFound
	}

	return loans[0], nil
}

// Reservation returns any reservation, active or ended.
func (s Store) Reservation(ctx context.Context, id core.ReservationID) (core.Reservation, error) {
	reservations, err := s.queryReservations(ctx, s.db, s.selectReservations().Where(goqu.C(colID).Eq(string(id))))
	if err != nil {
		return core.Reservation{}, err
	}

	if len(reservations) == 0 {
		return core.Reservation{}, core.ErrReservationNotFound
	}

	return reservations[0], nil
}

// LoansByUser returns every loan of the user ordered by borrow date.
func (s Store) LoansByUser(ctx context.Context, userID core.UserID) ([]core.Loan, error) {
	return s.queryLoans(ctx, s.db, s.selectLoans().
		Where(goqu.C(colUserID).Eq(string(userID))).
		Order(goqu.I(colBorrowedAt).Asc(), goqu.I(colID).Asc()))
}

// ReservationsByUser returns every reservation of the user ordered by reservation date.
func (s Store) ReservationsByUser(ctx context.Context, userID core.UserID) ([]core.Reservation, error) {
	return s.queryReservations(ctx, s.db, s.selectReservations().
		Where(goqu.C(colUserID).Eq(string(userID))).
		Order(goqu.I(colReservedAt).Asc(), goqu.I(colID).Asc()))
}

// BooksHeldBy returns the ids of books whose stored hold belongs to the user.
func (s Store) BooksHeldBy(ctx context.Context, userID core.UserID) ([]core.BookID, error) {
	stmt := s.builder().From(tableBooks).Select(colID).
		Where(goqu.C(colHoldUserID).Eq(string(userID))).
		Order(goqu.I(colID).Asc())

	return queryRows(ctx, s, s.db, stmt, func(rows adapters.DBRows) (core.BookID, error) {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}

		return core.BookID(id), nil
	})
}

func (s Store) loadBook(ctx context.Context, q adapters.Querier, id core.BookID) (core.BookRecord, error) {
	books, err := s.queryBooks(ctx, q, s.selectBooks().Where(goqu.C(colID).Eq(string(id))))
	if err != nil {
		return core.BookRecord{}, err
	}

	if len(books) == 0 {
		return core.BookRecord{}, core.ErrBookNotFound
	}

	rec := books[0]

	loans, err := s.queryLoans(ctx, q, s.selectLoans().
		Where(goqu.C(colBookID).Eq(string(id)), goqu.C(colReturnedAt).IsNull()))
	if err != nil {
		return core.BookRecord{}, err
	}

	if len(loans) > 0 {
		rec.ActiveLoan = &loans[0]
	}

	rec.Queue, err = s.queryReservations(ctx, q, s.selectReservations().
		Where(goqu.C(colBookID).Eq(string(id)), goqu.C(colIsActive).Eq(1)).
		Order(goqu.I(colQueuePosition).Asc()))
	if err != nil {
		return core.BookRecord{}, err
	}

	return rec, nil
}

func (s Store) bookExists(ctx context.Context, id core.BookID) (bool, error) {
	stmt := s.builder().From(tableBooks).Select(colID).Where(goqu.C(colID).Eq(string(id)))

	ids, err := queryRows(ctx, s, s.db, stmt, func(rows adapters.DBRows) (string, error) {
		var found string
		err := rows.Scan(&found)
		return found, err
	})
	if err != nil {
		return false, err
	}

	return len(ids) > 0, nil
}

// updateOrInsert updates the row with the given id and inserts it if nothing was updated.
func (s Store) updateOrInsert(ctx context.Context, q adapters.Querier, table string, id string, values goqu.Record) error {
	update := s.builder().Update(table).Set(values).Where(goqu.C(colID).Eq(id))

	rowsAffected, err := s.exec(ctx, q, update, logActionUpdate)
	if err != nil {
		return err
	}

	if rowsAffected > 0 {
		return nil
	}

	insert := s.builder().Insert(table).Rows(merge(values, goqu.Record{colID: id}))
	_, err = s.exec(ctx, q, insert, logActionInsert)

	return err
}

func (s Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(s.dialect)
}

func (s Store) selectBooks() *goqu.SelectDataset {
	return s.builder().From(tableBooks).Select(bookColumns...)
}

func (s Store) selectLoans() *goqu.SelectDataset {
	return s.builder().From(tableLoans).Select(loanColumns...)
}

func (s Store) selectReservations() *goqu.SelectDataset {
	return s.builder().From(tableReservations).Select(reservationColumns...)
}

func (s Store) queryBooks(ctx context.Context, q adapters.Querier, stmt *goqu.SelectDataset) ([]core.BookRecord, error) {
	return queryRows(ctx, s, q, stmt, func(rows adapters.DBRows) (core.BookRecord, error) {
		row := bookRow{}
		if err := rows.Scan(row.dest()...); err != nil {
			return core.BookRecord{}, err
		}

		return row.toRecord(), nil
	})
}

func (s Store) queryLoans(ctx context.Context, q adapters.Querier, stmt *goqu.SelectDataset) ([]core.Loan, error) {
	return queryRows(ctx, s, q, stmt, func(rows adapters.DBRows) (core.Loan, error) {
		row := loanRow{}
		if err := rows.Scan(row.dest()...); err != nil {
			return core.Loan{}, err
		}

		return row.toLoan()
	})
}

func (s Store) queryReservations(ctx context.Context, q adapters.Querier, stmt *goqu.SelectDataset) ([]core.Reservation, error) {
	return queryRows(ctx, s, q, stmt, func(rows adapters.DBRows) (core.Reservation, error) {
		row := reservationRow{}
		if err := rows.Scan(row.dest()...); err != nil {
			return core.Reservation{}, err
		}

		return row.toReservation(), nil
	})
}

// queryRows runs a select and decodes every row with scan.
func queryRows[T any](
	ctx context.Context,
	s Store,
	q adapters.Querier,
	stmt *goqu.SelectDataset,
	scan func(adapters.DBRows) (T, error),
) ([]T, error) {

	sqlQuery, err := s.toSQL(stmt)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, queryErr := q.Query(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, logActionSelect, time.Since(start))

	if queryErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, errors.Join(ErrQueryingFailed, queryErr)
	}
	defer s.closeRows(rows)

	var result []T
	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			if s.logger != nil {
				s.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error())
			}

			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryingFailed, err)
	}

	return result, nil
}

// exec runs an insert or update and returns the number of affected rows.
func (s Store) exec(ctx context.Context, q adapters.Querier, stmt sqlStatement, action string) (int64, error) {
	sqlQuery, err := s.toSQL(stmt)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, execErr := q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, action, time.Since(start))

	if execErr != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBExecFailed, logAttrError, execErr.Error(), logAttrQuery, sqlQuery)
		}

		return 0, errors.Join(ErrWritingFailed, execErr)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgRowsAffectedFailed, logAttrError, err.Error())
		}

		return 0, errors.Join(ErrGettingRowsAffectedFailed, err)
	}

	return rowsAffected, nil
}

func (s Store) toSQL(stmt sqlStatement) (string, error) {
	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgBuildQueryFailed, logAttrError, err.Error())
		}

		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (s Store) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, s.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (s Store) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s Store) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
