package lending

import (
	"context"
	"errors"
	"time"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending/locking"
)

// Engine is the lending facade. It is safe for concurrent use.
type Engine struct {
	store   Store
	locker  Locker
	policy  core.Policy
	loans   core.LoanManager
	queue   core.ReservationQueue
	newID   IDGenerator
	retry   retryConfig
	logger  Logger
	metrics MetricsCollector
	tracing TracingCollector
}

// NewEngine creates an Engine on top of store with optional configuration.
// Without WithLocker, callers of this process are serialized per book by a locking.Local.
func NewEngine(store Store, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	e := &Engine{
		store:  store,
		locker: locking.NewLocal(),
		policy: core.DefaultPolicy(),
		newID:  newUUIDv7,
		retry: retryConfig{
			maxAttempts:  defaultMaxAttempts,
			baseDelay:    defaultBaseDelay,
			jitterFactor: defaultJitterFactor,
		},
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	e.loans = core.NewLoanManager(e.policy)
	e.queue = e.loans.Queue()

	return e, nil
}

// Policy returns the lending policy in effect.
func (e *Engine) Policy() core.Policy {
	return e.policy
}

// BorrowBook lends the book to userID, see core.LoanManager.Borrow.
func (e *Engine) BorrowBook(ctx context.Context, bookID core.BookID, userID core.UserID, now time.Time) (core.Loan, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opBorrow, logAttrBookID, bookID, logAttrUserID, userID)

	var loan core.Loan
	err := e.mutate(ctx, opBorrow, bookID, func(_ context.Context, rec *core.BookRecord) error {
		id, err := e.nextID()
		if err != nil {
			return err
		}

		loan, err = e.loans.Borrow(rec, core.LoanID(id), userID, now)

		return err
	})

	obs.end(ctx, err)
	if err != nil {
		return core.Loan{}, err
	}

	return loan, nil
}

// RenewLoan extends an active loan by one loan period, see core.LoanManager.Renew.
func (e *Engine) RenewLoan(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opRenew, logAttrLoanID, loanID)

	var renewed core.Loan
	err := e.mutateLoan(ctx, opRenew, loanID, func(_ context.Context, rec *core.BookRecord) error {
		var err error
		renewed, err = e.loans.Renew(rec, loanID, now)

		return err
	})

	obs.end(ctx, err)
	if err != nil {
		return core.Loan{}, err
	}

	return renewed, nil
}

// ReturnBook closes an active loan with its final fine. If users wait for the book,
// the head of the queue gets a hold.
func (e *Engine) ReturnBook(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opReturn, logAttrLoanID, loanID)

	var returned core.Loan
	err := e.mutateLoan(ctx, opReturn, loanID, func(_ context.Context, rec *core.BookRecord) error {
		var err error
		returned, err = e.loans.Return(rec, loanID, now)

		return err
	})

	obs.end(ctx, err)
	if err != nil {
		return core.Loan{}, err
	}

	return returned, nil
}

// ReserveBook puts userID at the end of the book's waiting queue, see core.ReservationQueue.Reserve.
func (e *Engine) ReserveBook(
	ctx context.Context,
	bookID core.BookID,
	userID core.UserID,
	now time.Time,
) (core.Reservation, error) {

	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opReserve, logAttrBookID, bookID, logAttrUserID, userID)

	var reservation core.Reservation
	err := e.mutate(ctx, opReserve, bookID, func(_ context.Context, rec *core.BookRecord) error {
		id, err := e.nextID()
		if err != nil {
			return err
		}

		reservation, err = e.queue.Reserve(rec, core.ReservationID(id), userID, now)

		return err
	})

	obs.end(ctx, err)
	if err != nil {
		return core.Reservation{}, err
	}

	return reservation, nil
}

// CancelReservation withdraws an active reservation and moves everyone behind it up by one.
func (e *Engine) CancelReservation(ctx context.Context, reservationID core.ReservationID, now time.Time) (core.Reservation, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opCancel, logAttrReservationID, reservationID)

	var cancelled core.Reservation
	err := func() error {
		reservation, err := e.store.Reservation(ctx, reservationID)
		if err != nil {
			return err
		}

		return e.mutate(ctx, opCancel, reservation.BookID, func(_ context.Context, rec *core.BookRecord) error {
			var err error
			cancelled, err = e.queue.Cancel(rec, reservationID, now)

			return err
		})
	}()

	obs.end(ctx, err)
	if err != nil {
		return core.Reservation{}, err
	}

	return cancelled, nil
}

// SettleFine records the payment of a returned loan's fine.
func (e *Engine) SettleFine(ctx context.Context, loanID core.LoanID, now time.Time) (core.Loan, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opSettleFine, logAttrLoanID, loanID)

	var settled core.Loan
	err := e.mutateLoan(ctx, opSettleFine, loanID, func(ctx context.Context, rec *core.BookRecord) error {
		loan, err := e.store.Loan(ctx, loanID)
		if err != nil {
			return err
		}

		settled, err = e.loans.SettleFine(rec, loan, now)

		return err
	})

	obs.end(ctx, err)
	if err != nil {
		return core.Loan{}, err
	}

	return settled, nil
}

// mutate runs decide on a freshly loaded record of bookID inside the book's critical section
// and saves the result. A concurrency conflict reloads and decides again.
func (e *Engine) mutate(
	ctx context.Context,
	operation string,
	bookID core.BookID,
	decide func(ctx context.Context, rec *core.BookRecord) error,
) error {

	if bookID == "" {
		return core.ErrEmptyBookID
	}

	return e.locker.WithLock(ctx, bookLockKey(bookID), func(ctx context.Context) error {
		return e.retryOnConflict(ctx, operation, func(ctx context.Context) error {
			rec, err := e.store.LoadBook(ctx, bookID)
			if err != nil {
				return err
			}

			if err := decide(ctx, &rec); err != nil {
				return err
			}

			return e.store.SaveBook(ctx, rec)
		})
	})
}

// mutateLoan is mutate for the book a loan belongs to.
func (e *Engine) mutateLoan(
	ctx context.Context,
	operation string,
	loanID core.LoanID,
	decide func(ctx context.Context, rec *core.BookRecord) error,
) error {

	loan, err := e.store.Loan(ctx, loanID)
	if err != nil {
		return err
	}

	return e.mutate(ctx, operation, loan.BookID, decide)
}

func (e *Engine) nextID() (string, error) {
	id, err := e.newID()
	if err != nil {
		return "", errors.Join(ErrGeneratingIDFailed, err)
	}

	return id, nil
}
