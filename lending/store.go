package lending

import (
	"context"

	"github.com/d-sanghavi/library-management/core"
)

// Store persists books, loans and reservations.
//
// LoadBook returns the complete lending state of one book at its current version. SaveBook writes
// the record's availability and hold together with every loan and reservation listed in
// rec.Changes(), atomically, and only if the stored version still equals rec.Version; otherwise it
// fails with core.ErrConcurrencyConflict and writes nothing.
type Store interface {
	InsertBook(ctx context.Context, book core.Book) error
	LoadBook(ctx context.Context, id core.BookID) (core.BookRecord, error)
	ListBooks(ctx context.Context) ([]core.BookRecord, error)
	SaveBook(ctx context.Context, rec core.BookRecord) error

	Loan(ctx context.Context, id core.LoanID) (core.Loan, error)
	Reservation(ctx context.Context, id core.ReservationID) (core.Reservation, error)
	LoansByUser(ctx context.Context, userID core.UserID) ([]core.Loan, error)
	ReservationsByUser(ctx context.Context, userID core.UserID) ([]core.Reservation, error)
	BooksHeldBy(ctx context.Context, userID core.UserID) ([]core.BookID, error)
}

// Locker runs fn inside the critical section identified by key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

func bookLockKey(id core.BookID) string {
	return "book:" + string(id)
}
