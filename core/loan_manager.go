package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanManager implements borrowing, renewing and returning on a BookRecord.
type LoanManager struct {
	policy Policy
	queue  ReservationQueue
}

// NewLoanManager creates a LoanManager applying policy.
func NewLoanManager(policy Policy) LoanManager {
	return LoanManager{
		policy: policy,
		queue:  NewReservationQueue(policy),
	}
}

// Queue returns the ReservationQueue the LoanManager promotes through.
func (m LoanManager) Queue() ReservationQueue {
	return m.queue
}

// Borrow lends the book to userID for one loan period.
//
// The book must be Available, or held for userID by an unexpired hold, which is consumed.
// The current borrower gets ErrAlreadyBorrowing, everyone else ErrNotAvailable.
func (m LoanManager) Borrow(rec *BookRecord, id LoanID, userID UserID, now time.Time) (Loan, error) {
	if userID == "" {
		return Loan{}, ErrEmptyUserID
	}

	m.queue.ExpireHold(rec, now)

	if rec.ActiveLoan != nil {
		if rec.ActiveLoan.UserID == userID {
			return Loan{}, ErrAlreadyBorrowing
		}

		return Loan{}, ErrNotAvailable
	}

	switch {
	case rec.Hold != nil:
		if rec.Hold.UserID != userID {
			return Loan{}, ErrNotAvailable
		}

		rec.Hold = nil

	case rec.deriveAvailability() != Available:
		return Loan{}, ErrNotAvailable
	}

	loan := Loan{
		ID:         id,
		BookID:     rec.Book.ID,
		UserID:     userID,
		BorrowDate: now,
		DueDate:    now.Add(m.policy.LoanPeriod),
		Fine:       decimal.Zero,
	}

	rec.ActiveLoan = &loan
	rec.touchLoan(loan)
	rec.setAvailability()

	return loan, nil
}

// Renew extends the due date of the active loan by one loan period.
func (m LoanManager) Renew(rec *BookRecord, id LoanID, now time.Time) (Loan, error) {
	m.queue.ExpireHold(rec, now)

	loan, err := m.activeLoan(rec, id)
	if err != nil {
		return Loan{}, err
	}

	if loan.RenewalCount >= m.policy.MaxRenewals {
		return Loan{}, ErrRenewalLimitReached
	}

	if len(rec.Queue) > 0 {
		return Loan{}, ErrRenewalBlocked
	}

	loan.DueDate = loan.DueDate.Add(m.policy.LoanPeriod)
	loan.RenewalCount++

	rec.ActiveLoan = &loan
	rec.touchLoan(loan)

	return loan, nil
}

// Return closes the active loan, finalizes its fine and hands the book to the head of the queue.
func (m LoanManager) Return(rec *BookRecord, id LoanID, now time.Time) (Loan, error) {
	m.queue.ExpireHold(rec, now)

	loan, err := m.activeLoan(rec, id)
	if err != nil {
		return Loan{}, err
	}

	loan.ReturnDate = &now
	loan.Fine = ComputeFine(loan.DueDate, now, m.policy.DailyFineRate, m.policy.FineCap)

	rec.ActiveLoan = nil
	rec.touchLoan(loan)

	if len(rec.Queue) > 0 {
		m.queue.PromoteHead(rec, now)
	}

	rec.setAvailability()

	return loan, nil
}

// SettleFine records that the fine of a returned loan of this book has been paid.
func (m LoanManager) SettleFine(rec *BookRecord, loan Loan, now time.Time) (Loan, error) {
	if loan.BookID != rec.Book.ID {
		return Loan{}, ErrLoanNotFound
	}

	if !loan.HasOutstandingFine() {
		return Loan{}, ErrNoOutstandingFine
	}

	loan.FineSettledAt = &now
	rec.touchLoan(loan)

	return loan, nil
}

// DaysUntilDue returns the started days until the loan is due, negative when overdue.
func (m LoanManager) DaysUntilDue(loan Loan, now time.Time) int {
	return DaysUntilDue(loan, now)
}

// AccruedFine is the fine the loan would carry if it were returned at now.
func (m LoanManager) AccruedFine(loan Loan, now time.Time) decimal.Decimal {
	if !loan.IsActive() {
		return loan.Fine
	}

	return ComputeFine(loan.DueDate, now, m.policy.DailyFineRate, m.policy.FineCap)
}

func (m LoanManager) activeLoan(rec *BookRecord, id LoanID) (Loan, error) {
	if rec.ActiveLoan == nil || rec.ActiveLoan.ID != id {
		return Loan{}, ErrLoanAlreadyReturned
	}

	return *rec.ActiveLoan, nil
}
