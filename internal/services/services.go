// Package services holds the ledger's units of work. Each operation runs in
// a single storage transaction and publishes what it committed afterwards.
package services

import (
	"context"
	"log/slog"
	"time"

	"budgetledger/internal/core"
)

// Publisher announces committed ledger events to downstream consumers.
type Publisher interface {
	PublishCashFlowRecorded(ctx context.Context, id int64, userID core.UserID) error
}

// publishRecorded is best effort: the events are already committed.
func publishRecorded(ctx context.Context, p Publisher, flows ...core.CashFlow) {
	if p == nil {
		return
	}
	for _, c := range flows {
		if err := p.PublishCashFlowRecorded(ctx, c.ID, c.UserID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish cash flow message",
				"id", c.ID,
				"user_id", c.UserID,
				"error", err)
		}
	}
}

// clock reads the current instant in the home zone.
type clock struct {
	loc *time.Location
	now func() time.Time
}

func newClock(loc *time.Location) clock {
	if loc == nil {
		loc = time.UTC
	}
	return clock{loc: loc, now: time.Now}
}

func (c clock) Now() time.Time {
	return c.now().In(c.loc)
}

// monthRange resolves a "YYYY-MM" string (empty for the current month) to
// its inclusive bounds in the home zone.
func (c clock) monthRange(month string) (core.YearMonth, time.Time, time.Time, error) {
	ym, err := core.ParseYearMonth(month, c.Now())
	if err != nil {
		return core.YearMonth{}, time.Time{}, time.Time{}, err
	}
	start, end := ym.Range(c.loc)
	return ym, start, end, nil
}
