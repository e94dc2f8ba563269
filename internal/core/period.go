package core

import (
	"fmt"
	"strings"
	"time"
)

// YearMonth identifies a calendar month, formatted "YYYY-MM".
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses "YYYY-MM". An empty string yields the month of now.
func ParseYearMonth(s string, now time.Time) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return YearMonthOf(now), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, Invalidf("invalid month %q, expected YYYY-MM", s)
	}
	return YearMonthOf(t), nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Range returns the inclusive bounds of the month in loc: the first day at
// 00:00 and the last day at 23:59:59.999999999.
func (ym YearMonth) Range(loc *time.Location) (start, end time.Time) {
	start = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, loc)
	end = time.Date(ym.Year, ym.Month, DaysIn(ym.Year, ym.Month), 23, 59, 59, 999999999, loc)
	return start, end
}

func (ym YearMonth) Prev() YearMonth {
	return YearMonthOf(time.Date(ym.Year, ym.Month-1, 1, 0, 0, 0, 0, time.UTC))
}
