package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanID identifies a loan.
type LoanID string

// Loan is one borrowing of a book by a user. Loans are closed by setting ReturnDate, never deleted.
type Loan struct {
	ID            LoanID          `json:"id"`
	BookID        BookID          `json:"book_id"`
	UserID        UserID          `json:"user_id"`
	BorrowDate    time.Time       `json:"borrow_date"`
	DueDate       time.Time       `json:"due_date"`
	ReturnDate    *time.Time      `json:"return_date,omitempty"`
	RenewalCount  int             `json:"renewal_count"`
	Fine          decimal.Decimal `json:"fine"`
	FineSettledAt *time.Time      `json:"fine_settled_at,omitempty"`
}

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnDate == nil
}

// HasOutstandingFine reports whether the loan was returned with a fine that is not settled.
func (l Loan) HasOutstandingFine() bool {
	return !l.IsActive() && l.Fine.IsPositive() && l.FineSettledAt == nil
}
