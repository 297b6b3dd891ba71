package core

import "errors"

// ErrorKind classifies every error the lending engine can surface.
type ErrorKind string

const (
	KindNotFound                   ErrorKind = "NotFound"
	KindNotAvailable               ErrorKind = "NotAvailable"
	KindAlreadyBorrowing           ErrorKind = "AlreadyBorrowing"
	KindAlreadyReserved            ErrorKind = "AlreadyReserved"
	KindBookAvailable              ErrorKind = "BookAvailable"
	KindRenewalLimitReached        ErrorKind = "RenewalLimitReached"
	KindRenewalBlocked             ErrorKind = "RenewalBlocked"
	KindLoanAlreadyReturned        ErrorKind = "LoanAlreadyReturned"
	KindReservationAlreadyInactive ErrorKind = "ReservationAlreadyInactive"
	KindNoOutstandingFine          ErrorKind = "NoOutstandingFine"
	KindBookExists                 ErrorKind = "BookExists"
	KindConcurrencyConflict        ErrorKind = "ConcurrencyConflict"
	KindInvalidArgument            ErrorKind = "InvalidArgument"
	KindInternal                   ErrorKind = "Internal"
)

var (
	// ErrBookNotFound is returned when no book exists for the given id.
	ErrBookNotFound = errors.New("book not found")

	// ErrLoanNotFound is returned when no loan exists for the given id.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrReservationNotFound is returned when no reservation exists for the given id.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrNotAvailable is returned when a book can not be borrowed by the caller right now.
	ErrNotAvailable = errors.New("book is not available")

	// ErrAlreadyBorrowing is returned when the caller already holds the active loan of the book.
	ErrAlreadyBorrowing = errors.New("user already borrows this book")

	// ErrAlreadyReserved is returned when the caller already waits for, or holds, the book.
	ErrAlreadyReserved = errors.New("user already reserved this book")

	// ErrBookAvailable is returned when a reservation is requested for a book that can be borrowed.
	ErrBookAvailable = errors.New("book is available, borrow it instead")

	// ErrRenewalLimitReached is returned when a loan was already renewed the maximum number of times.
	ErrRenewalLimitReached = errors.New("renewal limit reached")

	// ErrRenewalBlocked is returned when other users wait for the book.
	ErrRenewalBlocked = errors.New("renewal blocked by pending reservations")

	// ErrLoanAlreadyReturned is returned when a closed loan is renewed or returned.
	ErrLoanAlreadyReturned = errors.New("loan already returned")

	// ErrReservationAlreadyInactive is returned when an inactive reservation is cancelled.
	ErrReservationAlreadyInactive = errors.New("reservation already inactive")

	// ErrNoOutstandingFine is returned when settling a loan that has no unsettled fine.
	ErrNoOutstandingFine = errors.New("loan has no outstanding fine")

	// ErrConcurrencyConflict is returned by stores when the book was changed since it was loaded.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrBookExists is returned when a book is added under an id the catalog already has.
	ErrBookExists = errors.New("book already exists")

	ErrEmptyBookID    = errors.New("book id must not be empty")
	ErrEmptyBookTitle = errors.New("book title must not be empty")
	ErrEmptyUserID    = errors.New("user id must not be empty")
	ErrInvalidPolicy  = errors.New("invalid lending policy")
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrBookNotFound, KindNotFound},
	{ErrLoanNotFound, KindNotFound},
	{ErrReservationNotFound, KindNotFound},
	{ErrNotAvailable, KindNotAvailable},
	{ErrAlreadyBorrowing, KindAlreadyBorrowing},
	{ErrAlreadyReserved, KindAlreadyReserved},
	{ErrBookAvailable, KindBookAvailable},
	{ErrRenewalLimitReached, KindRenewalLimitReached},
	{ErrRenewalBlocked, KindRenewalBlocked},
	{ErrLoanAlreadyReturned, KindLoanAlreadyReturned},
	{ErrReservationAlreadyInactive, KindReservationAlreadyInactive},
	{ErrNoOutstandingFine, KindNoOutstandingFine},
	{ErrConcurrencyConflict, KindConcurrencyConflict},
	{ErrEmptyBookID, KindInvalidArgument},
	{ErrEmptyBookTitle, KindInvalidArgument},
	{ErrEmptyUserID, KindInvalidArgument},
	{ErrBookExists, KindBookExists},
	{ErrInvalidPolicy, KindInvalidArgument},
}

// KindOf classifies err. Errors that match none of the sentinels of this package are Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.err) {
			return candidate.kind
		}
	}

	return KindInternal
}
