package lending

import (
	"context"
	"slices"
	"time"

	"github.com/d-sanghavi/library-management/core"
)

// DaysUntilDue returns the started days left on an active loan, negative when overdue.
func (e *Engine) DaysUntilDue(ctx context.Context, loanID core.LoanID, now time.Time) (int, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opDaysUntilDue, logAttrLoanID, loanID)

	days, err := e.daysUntilDue(ctx, loanID, now)

	obs.end(ctx, err)
	if err != nil {
		return 0, err
	}

	return days, nil
}

func (e *Engine) daysUntilDue(ctx context.Context, loanID core.LoanID, now time.Time) (int, error) {
	loan, err := e.store.Loan(ctx, loanID)
	if err != nil {
		return 0, err
	}

	if !loan.IsActive() {
		return 0, core.ErrLoanAlreadyReturned
	}

	return e.loans.DaysUntilDue(loan, now), nil
}

// Account returns a member's loans, reservations, holds and fine ledger as of now.
//
// Books the user waits for or holds are evaluated with lazily expired holds applied, so a hold
// that passed to the user while nobody touched the book shows up here.
func (e *Engine) Account(ctx context.Context, userID core.UserID, now time.Time) (core.Account, error) {
	now = core.ToInstant(now)
	ctx, obs := e.begin(ctx, opAccount, logAttrUserID, userID)

	account, err := e.account(ctx, userID, now)

	obs.end(ctx, err)
	if err != nil {
		return core.Account{}, err
	}

	return account, nil
}

func (e *Engine) account(ctx context.Context, userID core.UserID, now time.Time) (core.Account, error) {
	if userID == "" {
		return core.Account{}, core.ErrEmptyUserID
	}

	loans, err := e.store.LoansByUser(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}

	reservations, err := e.store.ReservationsByUser(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}

	held, err := e.store.BooksHeldBy(ctx, userID)
	if err != nil {
		return core.Account{}, err
	}

	bookIDs := slices.Clone(held)
	for _, res := range reservations {
		if res.IsActive {
			bookIDs = append(bookIDs, res.BookID)
		}
	}
	slices.Sort(bookIDs)
	bookIDs = slices.Compact(bookIDs)

	var current []core.Reservation
	var holds []core.Hold

	for _, bookID := range bookIDs {
		rec, err := e.view(ctx, bookID, now)
		if err != nil {
			return core.Account{}, err
		}

		if rec.Hold != nil && rec.Hold.UserID == userID {
			holds = append(holds, *rec.Hold)
		}

		for _, res := range rec.Queue {
			if res.UserID == userID {
				current = append(current, res)
			}
		}
	}

	return e.loans.BuildAccount(userID, loans, current, holds, now), nil
}
