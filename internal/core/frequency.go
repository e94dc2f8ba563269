package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Weekly      Frequency = "WEEKLY"
	Fortnightly Frequency = "FORTNIGHTLY"
	Monthly     Frequency = "MONTHLY"
	Quarterly   Frequency = "QUARTERLY"
	Yearly      Frequency = "YEARLY"
	Annual      Frequency = "ANNUAL"
	Annually    Frequency = "ANNUALLY"
)

// Frequency is the billing period of a subscription. Unknown values are
// stored as given and step monthly.
type Frequency string

type step func(time.Time) time.Time

var steps = map[Frequency]step{
	Weekly:      func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
	Fortnightly: func(t time.Time) time.Time { return t.AddDate(0, 0, 14) },
	Monthly:     func(t time.Time) time.Time { return AddMonthsClamped(t, 1) },
	Quarterly:   func(t time.Time) time.Time { return AddMonthsClamped(t, 3) },
	Yearly:      func(t time.Time) time.Time { return AddMonthsClamped(t, 12) },
	Annual:      func(t time.Time) time.Time { return AddMonthsClamped(t, 12) },
	Annually:    func(t time.Time) time.Time { return AddMonthsClamped(t, 12) },
}

// ParseFrequency normalizes user input: trimmed and upper-cased.
func ParseFrequency(s string) Frequency {
	return Frequency(strings.ToUpper(strings.TrimSpace(s)))
}

// Known reports whether f has its own step; unknown frequencies fall back
// to monthly.
func (f Frequency) Known() bool {
	_, ok := steps[ParseFrequency(string(f))]
	return ok
}

// Increment returns the next posting instant after t. Day-of-month is kept
// and clamped to the length of the target month, so 2024-01-31 steps to
// 2024-02-29 and 2023-01-31 to 2023-02-28. Wall clock time and location of
// t are preserved.
func Increment(t time.Time, f Frequency) time.Time {
	if fn, ok := steps[ParseFrequency(string(f))]; ok {
		return fn(t)
	}
	return AddMonthsClamped(t, 1)
}

// AddMonthsClamped adds n calendar months without the overflow
// normalization of time.AddDate.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	ty, tm, _ := first.Date()
	if last := DaysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthlyEquivalent converts a per-period amount to its monthly cost,
// rounded half-up to cents.
func (f Frequency) MonthlyEquivalent(amount Money) Money {
	d := amount.Decimal()
	switch ParseFrequency(string(f)) {
	case Weekly:
		d = d.Mul(decimal.NewFromInt(52)).DivRound(decimal.NewFromInt(12), 2)
	case Fortnightly:
		d = d.Mul(decimal.NewFromInt(26)).DivRound(decimal.NewFromInt(12), 2)
	case Quarterly:
		d = d.DivRound(decimal.NewFromInt(3), 2)
	case Yearly, Annual, Annually:
		d = d.DivRound(decimal.NewFromInt(12), 2)
	default:
		return amount
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return amount
	}
	return m
}
