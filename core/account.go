package core

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DueStatus buckets the days left on a loan.
type DueStatus string

const (
	DueOverdue DueStatus = "overdue"
	DueToday   DueStatus = "due_today"
	DueSoon    DueStatus = "due_soon"
	DueOnTime  DueStatus = "on_time"

	dueSoonDays = 3
)

// FineStatus is the ledger state of a fine.
type FineStatus string

const (
	FinePending  FineStatus = "pending"
	FinePaid     FineStatus = "paid"
	FineAccruing FineStatus = "accruing"
)

// LoanStatus is an active loan as a member sees it.
type LoanStatus struct {
	Loan         Loan      `json:"loan"`
	DaysUntilDue int       `json:"days_until_due"`
	DueStatus    DueStatus `json:"due_status"`
	RenewalsLeft int       `json:"renewals_left"`
}

// FineEntry is one line of a member's fine ledger.
type FineEntry struct {
	LoanID LoanID          `json:"loan_id"`
	BookID BookID          `json:"book_id"`
	Amount decimal.Decimal `json:"amount"`
	Status FineStatus      `json:"status"`
	Date   time.Time       `json:"date"`
}

// Account is the lending overview of one member.
type Account struct {
	UserID           UserID          `json:"user_id"`
	Loans            []LoanStatus    `json:"loans"`
	Reservations     []Reservation   `json:"reservations"`
	Holds            []Hold          `json:"holds"`
	Fines            []FineEntry     `json:"fines"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
}

// ClassifyDue maps days until due to a DueStatus.
func ClassifyDue(daysUntilDue int) DueStatus {
	switch {
	case daysUntilDue < 0:
		return DueOverdue
	case daysUntilDue == 0:
		return DueToday
	case daysUntilDue <= dueSoonDays:
		return DueSoon
	default:
		return DueOnTime
	}
}

// BuildAccount assembles a member's overview from all of their loans, their active reservations
// and the holds they currently have.
func (m LoanManager) BuildAccount(
	userID UserID,
	loans []Loan,
	reservations []Reservation,
	holds []Hold,
	now time.Time,
) Account {

	account := Account{
		UserID:           userID,
		Loans:            []LoanStatus{},
		Reservations:     []Reservation{},
		Holds:            []Hold{},
		Fines:            []FineEntry{},
		OutstandingTotal: decimal.Zero,
	}

	for _, loan := range loans {
		if loan.IsActive() {
			days := m.DaysUntilDue(loan, now)
			account.Loans = append(account.Loans, LoanStatus{
				Loan:         loan,
				DaysUntilDue: days,
				DueStatus:    ClassifyDue(days),
				RenewalsLeft: max(m.policy.MaxRenewals-loan.RenewalCount, 0),
			})

			if accrued := m.AccruedFine(loan, now); accrued.IsPositive() {
				account.Fines = append(account.Fines, FineEntry{LoanID: loan.ID, BookID: loan.BookID, Amount: accrued, Status: FineAccruing, Date: loan.DueDate})
			}

			continue
		}

		if !loan.Fine.IsPositive() {
			continue
		}

		entry := FineEntry{LoanID: loan.ID, BookID: loan.BookID, Amount: loan.Fine, Status: FinePending, Date: *loan.ReturnDate}
		if loan.FineSettledAt != nil {
			entry.Status = FinePaid
			entry.Date = *loan.FineSettledAt
		} else {
			account.OutstandingTotal = account.OutstandingTotal.Add(loan.Fine)
		}

		account.Fines = append(account.Fines, entry)
	}

	for _, res := range reservations {
		if res.IsActive {
			account.Reservations = append(account.Reservations, res)
		}
	}

	for _, hold := range holds {
		if hold.UserID == userID && !hold.IsExpired(now) {
			account.Holds = append(account.Holds, hold)
		}
	}

	slices.SortFunc(account.Loans, func(a, b LoanStatus) int { return a.Loan.DueDate.Compare(b.Loan.DueDate) })
	slices.SortFunc(account.Fines, func(a, b FineEntry) int { return b.Date.Compare(a.Date) })

	return account
}
