package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriod  = 14 * 24 * time.Hour
	DefaultMaxRenewals = 3
	DefaultHoldWindow  = 48 * time.Hour
)

var (
	defaultDailyFineRate = decimal.RequireFromString("0.50")
	defaultFineCap       = decimal.RequireFromString("10.00")
)

// Policy holds the lending parameters.
type Policy struct {
	LoanPeriod    time.Duration
	MaxRenewals   int
	HoldWindow    time.Duration
	DailyFineRate decimal.Decimal
	FineCap       decimal.Decimal
}

// DefaultPolicy returns the library's standard lending terms.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:    DefaultLoanPeriod,
		MaxRenewals:   DefaultMaxRenewals,
		HoldWindow:    DefaultHoldWindow,
		DailyFineRate: defaultDailyFineRate,
		FineCap:       defaultFineCap,
	}
}

// Validate rejects policies that would break the lending rules.
func (p Policy) Validate() error {
	switch {
	case p.LoanPeriod <= 0:
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("loan period must be positive, got %s", p.LoanPeriod))
	case p.MaxRenewals < 0:
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("max renewals must not be negative, got %d", p.MaxRenewals))
	case p.HoldWindow <= 0:
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("hold window must be positive, got %s", p.HoldWindow))
	case p.DailyFineRate.IsNegative():
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("daily fine rate must not be negative, got %s", p.DailyFineRate))
	case p.FineCap.IsNegative():
		return errors.Join(ErrInvalidPolicy, fmt.Errorf("fine cap must not be negative, got %s", p.FineCap))
	}

	return nil
}

// ToInstant normalizes t to UTC with microsecond precision, the resolution timestamps are stored with.
// Values computed from a normalized now survive a store round trip unchanged.
func ToInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
