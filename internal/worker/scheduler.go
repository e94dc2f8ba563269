package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DailyScheduler runs a job once at start and then every day at a fixed
// wall-clock time in loc. Runs never overlap: a slow run pushes the next one
// to the following slot.
type DailyScheduler struct {
	name   string
	hour   int
	minute int
	loc    *time.Location
	job    func(context.Context)

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewDailyScheduler(name string, hour, minute int, loc *time.Location, job func(context.Context)) (*DailyScheduler, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid run time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{
		name:   name,
		hour:   hour,
		minute: minute,
		loc:    loc,
		job:    job,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun returns the first slot strictly after now. Slots are computed on
// the calendar, so days with a DST shift are handled by time.Date.
func (s *DailyScheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

// Run blocks until ctx is done.
func (s *DailyScheduler) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Running startup job", "job", s.name)
	s.job(ctx)

	for {
		next := s.NextRun(s.now())
		slog.InfoContext(ctx, "Next scheduled run",
			"job", s.name,
			"at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped", "job", s.name, "reason", ctx.Err())
			return
		case <-s.after(time.Until(next)):
		}

		if ctx.Err() != nil {
			return
		}
		s.job(ctx)
	}
}
