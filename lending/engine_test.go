package lending_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending"
)

func Test_BorrowBook_OnAvailableBook_CreatesLoan(t *testing.T) {
	// arrange
	engine := givenEngine(t, givenCatalog(t))

	// act
	loan, err := engine.BorrowBook(context.Background(), book1984, userU1, t0)

	// assert
	require.NoError(t, err)
	assert.Equal(t, t0.Add(14*days), loan.DueDate)
	assert.Equal(t, 0, loan.RenewalCount)
	assertAvailability(t, engine, core.Borrowed, t0)
}

func Test_RenewLoan_ThreeTimes_ThenLimitReached(t *testing.T) {
	// arrange
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)

	// act
	var renewed core.Loan
	for i := 0; i < 3; i++ {
		var err error
		renewed, err = engine.RenewLoan(ctx, loan.ID, t0.Add(10*days))
		require.NoError(t, err)
	}
	_, err := engine.RenewLoan(ctx, loan.ID, t0.Add(10*days))

	// assert
	assert.ErrorIs(t, err, core.ErrRenewalLimitReached)
	assert.Equal(t, core.KindRenewalLimitReached, core.KindOf(err))
	assert.Equal(t, t0.Add(14*days+3*14*days), renewed.DueDate)
}

func Test_ReturnBook_PromotesReserver_WhoBorrowsWithinHold(t *testing.T) {
	// arrange
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)

	reservation, err := engine.ReserveBook(ctx, book1984, userU2, t0.Add(days))
	require.NoError(t, err)
	assert.Equal(t, 1, reservation.Position)

	// act
	_, err = engine.ReturnBook(ctx, loan.ID, t0.Add(5*days))
	require.NoError(t, err)

	// assert
	assertAvailability(t, engine, core.Reserved, t0.Add(5*days))

	queue, err := engine.Queue(ctx, book1984, t0.Add(5*days))
	require.NoError(t, err)
	require.NotNil(t, queue.Hold)
	assert.Equal(t, userU2, queue.Hold.UserID)

	_, err = engine.BorrowBook(ctx, book1984, userU3, t0.Add(6*days))
	assert.ErrorIs(t, err, core.ErrNotAvailable)

	second, err := engine.BorrowBook(ctx, book1984, userU2, t0.Add(6*days))
	require.NoError(t, err)
	assert.NotEqual(t, loan.ID, second.ID)
	assertAvailability(t, engine, core.Borrowed, t0.Add(6*days))
}

func Test_Hold_Expires_BookBecomesAvailable(t *testing.T) {
	// arrange
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)
	_, err := engine.ReserveBook(ctx, book1984, userU2, t0.Add(days))
	require.NoError(t, err)
	_, err = engine.ReturnBook(ctx, loan.ID, t0.Add(5*days))
	require.NoError(t, err)

	afterHold := t0.Add(5*days + engine.Policy().HoldWindow)

	// act + assert
	assertAvailability(t, engine, core.Available, afterHold)

	late, err := engine.BorrowBook(ctx, book1984, userU3, afterHold)
	require.NoError(t, err)
	assert.Equal(t, userU3, late.UserID)
}

func Test_ConcurrentBorrow_ExactlyOneWins(t *testing.T) {
	// arrange
	engine := givenEngine(t, givenCatalog(t))
	const callers = 16

	var wg sync.WaitGroup
	results := make([]error, callers)

	// act
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.BorrowBook(context.Background(), book1984, core.UserID(rune('a'+i)), t0)
		}(i)
	}
	wg.Wait()

	// assert
	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, core.ErrNotAvailable)
	}
	assert.Equal(t, 1, successes)
}

func Test_ConcurrentBorrow_WithoutLock_VersionCheckKeepsOneLoan(t *testing.T) {
	// arrange
	store := givenCatalog(t)
	engine := givenEngine(t, store, lending.WithLocker(noLocker{}), lending.WithConflictRetries(50))
	const callers = 16

	var wg sync.WaitGroup
	results := make([]error, callers)

	// act
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.BorrowBook(context.Background(), book1984, core.UserID(rune('a'+i)), t0)
		}(i)
	}
	wg.Wait()

	// assert
	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, core.ErrNotAvailable) || errors.Is(err, core.ErrConcurrencyConflict), "unexpected error %v", err)
	}
	assert.Equal(t, 1, successes)
}

func Test_ConcurrentReservations_KeepPositionsContiguous(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := givenCatalog(t)
	engine := givenEngine(t, store)
	givenBorrowed(t, engine, userU1, t0)
	const callers = 12

	var wg sync.WaitGroup
	reservations := make([]core.Reservation, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.ReserveBook(ctx, book1984, core.UserID(rune('a'+i)), t0)
			assert.NoError(t, err)
			reservations[i] = res
		}(i)
	}
	wg.Wait()

	// act
	for i := 0; i < callers; i += 3 {
		wg.Add(1)
		go func(id core.ReservationID) {
			defer wg.Done()
			_, err := engine.CancelReservation(ctx, id, t0.Add(days))
			assert.NoError(t, err)
		}(reservations[i].ID)
	}
	wg.Wait()

	// assert
	queue, err := engine.Queue(ctx, book1984, t0.Add(days))
	require.NoError(t, err)
	assert.Len(t, queue.Reservations, callers-callers/3)
	assertStoreInvariants(t, store, book1984)
}

func Test_Conflict_RetriedOnce(t *testing.T) {
	// arrange
	store := &conflictingStore{Store: givenCatalog(t)}
	store.remaining.Store(1)
	metrics := newRecordingMetrics()
	engine := givenEngine(t, store, lending.WithMetrics(metrics))

	// act
	loan, err := engine.BorrowBook(context.Background(), book1984, userU1, t0)

	// assert
	require.NoError(t, err)
	assert.Equal(t, userU1, loan.UserID)
	assert.Equal(t, int32(2), store.saves.Load())
	assert.Equal(t, 1, metrics.counter(lending.ConflictRetriesMetric))
	assert.Equal(t, 0, metrics.counter(lending.ConflictsExhaustedMetric))
}

func Test_Conflict_SecondConflictSurfaced(t *testing.T) {
	// arrange
	store := &conflictingStore{Store: givenCatalog(t)}
	store.remaining.Store(2)
	metrics := newRecordingMetrics()
	engine := givenEngine(t, store, lending.WithMetrics(metrics))

	// act
	_, err := engine.BorrowBook(context.Background(), book1984, userU1, t0)

	// assert
	assert.ErrorIs(t, err, core.ErrConcurrencyConflict)
	assert.Equal(t, core.KindConcurrencyConflict, core.KindOf(err))
	assert.Equal(t, int32(2), store.saves.Load())
	assert.Equal(t, 1, metrics.counter(lending.ConflictsExhaustedMetric))
	assertAvailability(t, engine, core.Available, t0)
}

func Test_BusinessRejection_IsNotRetried(t *testing.T) {
	store := &conflictingStore{Store: givenCatalog(t)}
	engine := givenEngine(t, store)

	_, err := engine.ReserveBook(context.Background(), book1984, userU1, t0)

	assert.ErrorIs(t, err, core.ErrBookAvailable)
	assert.Equal(t, int32(0), store.saves.Load())
}

func Test_BorrowBook_Twice_IsRejected(t *testing.T) {
	engine := givenEngine(t, givenCatalog(t))
	givenBorrowed(t, engine, userU1, t0)

	_, err := engine.BorrowBook(context.Background(), book1984, userU1, t0)

	assert.ErrorIs(t, err, core.ErrAlreadyBorrowing)
}

func Test_NotFound_Errors(t *testing.T) {
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))

	_, err := engine.BorrowBook(ctx, "missing", userU1, t0)
	assert.ErrorIs(t, err, core.ErrBookNotFound)

	_, err = engine.RenewLoan(ctx, "missing", t0)
	assert.ErrorIs(t, err, core.ErrLoanNotFound)

	_, err = engine.ReturnBook(ctx, "missing", t0)
	assert.ErrorIs(t, err, core.ErrLoanNotFound)

	_, err = engine.CancelReservation(ctx, "missing", t0)
	assert.ErrorIs(t, err, core.ErrReservationNotFound)

	_, err = engine.DaysUntilDue(ctx, "missing", t0)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}

func Test_ReturnBook_FineAndDaysUntilDue(t *testing.T) {
	// arrange
	ctx := context.Background()
	policy := core.DefaultPolicy()
	policy.DailyFineRate = decimal.RequireFromString("1.00")
	engine := givenEngine(t, givenCatalog(t), lending.WithPolicy(policy))
	loan := givenBorrowed(t, engine, userU1, t0)

	left, err := engine.DaysUntilDue(ctx, loan.ID, t0.Add(10*days))
	require.NoError(t, err)
	assert.Equal(t, 4, left)

	// act
	returned, err := engine.ReturnBook(ctx, loan.ID, loan.DueDate.Add(3*days))

	// assert
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.00").Equal(returned.Fine))

	_, err = engine.ReturnBook(ctx, loan.ID, loan.DueDate.Add(3*days))
	assert.ErrorIs(t, err, core.ErrLoanAlreadyReturned)

	_, err = engine.DaysUntilDue(ctx, loan.ID, t0)
	assert.ErrorIs(t, err, core.ErrLoanAlreadyReturned)
}

func Test_CancelReservation_TwiceIsNoOp(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := givenCatalog(t)
	engine := givenEngine(t, store)
	givenBorrowed(t, engine, userU1, t0)
	first, err := engine.ReserveBook(ctx, book1984, userU2, t0)
	require.NoError(t, err)
	_, err = engine.ReserveBook(ctx, book1984, userU3, t0)
	require.NoError(t, err)

	// act
	_, err = engine.CancelReservation(ctx, first.ID, t0)
	require.NoError(t, err)
	_, err = engine.CancelReservation(ctx, first.ID, t0)

	// assert
	assert.ErrorIs(t, err, core.ErrReservationAlreadyInactive)
	queue, err := engine.Queue(ctx, book1984, t0)
	require.NoError(t, err)
	require.Len(t, queue.Reservations, 1)
	assert.Equal(t, 1, queue.Reservations[0].Position)
	assert.Equal(t, userU3, queue.Reservations[0].UserID)
}

func Test_RenewLoan_BlockedByReservation(t *testing.T) {
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)
	_, err := engine.ReserveBook(ctx, book1984, userU2, t0)
	require.NoError(t, err)

	_, err = engine.RenewLoan(ctx, loan.ID, t0.Add(days))

	assert.ErrorIs(t, err, core.ErrRenewalBlocked)
}

func Test_SettleFine_AndAccount(t *testing.T) {
	// arrange
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)
	_, err := engine.ReturnBook(ctx, loan.ID, loan.DueDate.Add(2*days))
	require.NoError(t, err)

	other, err := engine.BorrowBook(ctx, "1", userU1, t0)
	require.NoError(t, err)

	before, err := engine.Account(ctx, userU1, loan.DueDate.Add(2*days))
	require.NoError(t, err)

	// act
	settled, err := engine.SettleFine(ctx, loan.ID, loan.DueDate.Add(3*days))
	require.NoError(t, err)
	_, secondErr := engine.SettleFine(ctx, loan.ID, loan.DueDate.Add(3*days))

	after, err := engine.Account(ctx, userU1, loan.DueDate.Add(3*days))
	require.NoError(t, err)

	// assert
	require.NotNil(t, settled.FineSettledAt)
	assert.ErrorIs(t, secondErr, core.ErrNoOutstandingFine)

	assert.True(t, decimal.RequireFromString("1.00").Equal(before.OutstandingTotal), "got %s", before.OutstandingTotal)
	assert.True(t, after.OutstandingTotal.IsZero())
	require.Len(t, after.Loans, 1)
	assert.Equal(t, other.ID, after.Loans[0].Loan.ID)
}

func Test_Account_ShowsHoldPassedOnWhileUntouched(t *testing.T) {
	// arrange
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))
	loan := givenBorrowed(t, engine, userU1, t0)
	_, err := engine.ReserveBook(ctx, book1984, userU2, t0)
	require.NoError(t, err)
	_, err = engine.ReserveBook(ctx, book1984, userU3, t0)
	require.NoError(t, err)
	_, err = engine.ReturnBook(ctx, loan.ID, t0.Add(days))
	require.NoError(t, err)

	afterFirstHold := t0.Add(days + engine.Policy().HoldWindow + 1)

	// act
	account, err := engine.Account(ctx, userU3, afterFirstHold)

	// assert
	require.NoError(t, err)
	require.Len(t, account.Holds, 1)
	assert.Equal(t, userU3, account.Holds[0].UserID)
	assert.Empty(t, account.Reservations)

	expired, err := engine.Account(ctx, userU2, afterFirstHold)
	require.NoError(t, err)
	assert.Empty(t, expired.Holds)
}

func Test_AddBook_AndListBooks(t *testing.T) {
	ctx := context.Background()
	engine := givenEngine(t, givenCatalog(t))

	added, err := engine.AddBook(ctx, core.Book{ID: "9", Title: "Dune", Availability: core.Borrowed})
	require.NoError(t, err)
	assert.Equal(t, core.Available, added.Availability)

	_, err = engine.AddBook(ctx, core.Book{ID: "9", Title: "Dune"})
	assert.ErrorIs(t, err, core.ErrBookExists)

	_, err = engine.AddBook(ctx, core.Book{ID: "10"})
	assert.ErrorIs(t, err, core.ErrEmptyBookTitle)

	books, err := engine.ListBooks(ctx, t0)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, core.BookID("1"), books[0].ID)
}

func Test_Logging_WithSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := givenEngine(t, givenCatalog(t), lending.WithLogger(logger))

	givenBorrowed(t, engine, userU1, t0)
	_, err := engine.BorrowBook(context.Background(), book1984, userU2, t0)
	require.Error(t, err)

	assert.Contains(t, buf.String(), "lending operation succeeded")
	assert.Contains(t, buf.String(), "lending operation rejected")
	assert.Contains(t, buf.String(), `"kind":"NotAvailable"`)
}

func Test_ReadOperations_AreInstrumented(t *testing.T) {
	// arrange
	ctx := context.Background()
	metrics := newRecordingMetrics()
	engine := givenEngine(t, givenCatalog(t), lending.WithMetrics(metrics))
	loan := givenBorrowed(t, engine, userU1, t0)

	// act
	_, err := engine.GetBook(ctx, book1984, t0)
	require.NoError(t, err)
	_, err = engine.ListBooks(ctx, t0)
	require.NoError(t, err)
	_, err = engine.Queue(ctx, book1984, t0)
	require.NoError(t, err)
	_, err = engine.DaysUntilDue(ctx, loan.ID, t0)
	require.NoError(t, err)
	_, err = engine.Account(ctx, userU1, t0)
	require.NoError(t, err)
	_, err = engine.GetBook(ctx, "missing", t0)
	require.ErrorIs(t, err, core.ErrBookNotFound)

	// assert
	var operations []string
	for _, labels := range metrics.labels {
		operations = append(operations, labels[lending.LabelOperation]+"/"+labels[lending.LabelStatus])
	}
	assert.Equal(t, []string{
		"borrow_book/success",
		"get_book/success",
		"list_books/success",
		"queue/success",
		"days_until_due/success",
		"account/success",
		"get_book/rejected",
	}, operations)
}

func Test_NewEngine_ValidatesOptions(t *testing.T) {
	store := givenCatalog(t)

	_, err := lending.NewEngine(nil)
	assert.ErrorIs(t, err, lending.ErrNilStore)

	_, err = lending.NewEngine(store, lending.WithLocker(nil))
	assert.ErrorIs(t, err, lending.ErrNilLocker)

	_, err = lending.NewEngine(store, lending.WithConflictRetries(0))
	assert.ErrorIs(t, err, lending.ErrInvalidMaxAttempts)

	_, err = lending.NewEngine(store, lending.WithRetryBackoff(0, 2))
	assert.ErrorIs(t, err, lending.ErrInvalidJitterFactor)

	_, err = lending.NewEngine(store, lending.WithIDGenerator(nil))
	assert.ErrorIs(t, err, lending.ErrNilIDGenerator)

	broken := core.DefaultPolicy()
	broken.HoldWindow = 0
	_, err = lending.NewEngine(store, lending.WithPolicy(broken))
	assert.ErrorIs(t, err, core.ErrInvalidPolicy)
}
