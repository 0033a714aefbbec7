package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountTolerance is the reconciliation tolerance for posted ledger amounts.
// Deltas at or below this are treated as already-synchronized and not rewritten.
var AmountTolerance = decimal.NewFromFloat(0.01)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ConvertToDate strips the time component, keeping the calendar day in the
// given IANA timezone (movement ordering is by calendar date, not instant).
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
}

// WithinTolerance reports whether two amounts differ by no more than AmountTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}
