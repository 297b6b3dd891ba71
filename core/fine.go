package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// ComputeFine returns the overdue fine for a loan due at dueDate and returned at returnDate:
// zero when returned on time, otherwise dailyRate per started day late, capped at fineCap.
func ComputeFine(dueDate, returnDate time.Time, dailyRate, fineCap decimal.Decimal) decimal.Decimal {
	if !returnDate.After(dueDate) {
		return decimal.Zero
	}

	daysLate := ceilDays(returnDate.Sub(dueDate))
	fine := dailyRate.Mul(decimal.NewFromInt(daysLate))

	return decimal.Min(fine, fineCap)
}

// DaysUntil returns the number of started days from now until due. Negative means overdue.
func DaysUntil(due, now time.Time) int {
	return int(ceilDays(due.Sub(now)))
}

// DaysUntilDue is DaysUntil for a loan.
func DaysUntilDue(loan Loan, now time.Time) int {
	return DaysUntil(loan.DueDate, now)
}

// ceilDays rounds d up to whole days, towards positive infinity.
func ceilDays(d time.Duration) int64 {
	days := int64(d / day)
	if d%day > 0 {
		days++
	}

	return days
}
