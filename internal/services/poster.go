package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"budgetledger/internal/core"
	"budgetledger/internal/lock"
	"budgetledger/internal/storage"
)

// PosterConfig bounds a catch-up run.
type PosterConfig struct {
	// Workers is how many subscriptions are caught up in parallel (default: 4)
	Workers int

	// SubscriptionTimeout caps the time spent on one subscription (default: 30s)
	SubscriptionTimeout time.Duration
}

func DefaultPosterConfig() PosterConfig {
	return PosterConfig{
		Workers:             4,
		SubscriptionTimeout: 30 * time.Second,
	}
}

// SubscriptionFailure is one subscription the run could not catch up. Its
// cursor was left where it was so the next run retries it.
type SubscriptionFailure struct {
	SubscriptionID int64
	UserID         core.UserID
	Err            error
}

// PostingReport summarizes one catch-up run.
type PostingReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Skipped is set when another run held the lock.
	Skipped   bool
	Due       int
	CaughtUp  int
	Posted    int
	Failures  []SubscriptionFailure
	ListError error
}

// SubscriptionPoster posts one EXPENSE per elapsed subscription period and
// advances each subscription's cursor past now.
type SubscriptionPoster struct {
	repo      *storage.SQLiteRepository
	locker    lock.Locker
	publisher Publisher
	clock     clock
	config    PosterConfig
}

func NewSubscriptionPoster(repo *storage.SQLiteRepository, locker lock.Locker, publisher Publisher, loc *time.Location, config PosterConfig) *SubscriptionPoster {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	defaults := DefaultPosterConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.SubscriptionTimeout <= 0 {
		config.SubscriptionTimeout = defaults.SubscriptionTimeout
	}
	return &SubscriptionPoster{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		clock:     newClock(loc),
		config:    config,
	}
}

// PostDueSubscriptions runs one catch-up pass. It never fails as a whole:
// problems are logged and reported per subscription.
func (p *SubscriptionPoster) PostDueSubscriptions(ctx context.Context) (report PostingReport) {
	report = PostingReport{RunID: uuid.NewString(), StartedAt: p.clock.Now()}
	defer func() { report.FinishedAt = p.clock.Now() }()

	release, ok, err := p.locker.TryLock(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to acquire subscription run lock", "run_id", report.RunID, "error", err)
		report.Skipped = true
		return report
	}
	if !ok {
		slog.InfoContext(ctx, "Subscription run already in progress, skipping", "run_id", report.RunID)
		report.Skipped = true
		return report
	}
	defer release()

	now := p.clock.Now()
	due, err := p.repo.Queries().ListDueSubscriptions(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list due subscriptions", "run_id", report.RunID, "error", err)
		report.ListError = err
		return report
	}
	report.Due = len(due)
	if len(due) == 0 {
		slog.DebugContext(ctx, "No subscriptions due", "run_id", report.RunID, "now", now)
		return report
	}

	slog.InfoContext(ctx, "Posting due subscriptions",
		"run_id", report.RunID,
		"due", len(due),
		"now", now.Format(time.RFC3339))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.config.Workers)
	for _, sub := range due {
		sub := sub
		g.Go(func() error {
			posted, err := p.catchUp(ctx, sub.ID, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, SubscriptionFailure{
					SubscriptionID: sub.ID,
					UserID:         sub.UserID,
					Err:            err,
				})
				slog.ErrorContext(ctx, "Failed to catch up subscription",
					"run_id", report.RunID,
					"subscription_id", sub.ID,
					"user_id", sub.UserID,
					"error", err)
				return nil
			}
			report.CaughtUp++
			report.Posted += len(posted)
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Subscription run complete",
		"run_id", report.RunID,
		"due", report.Due,
		"caught_up", report.CaughtUp,
		"posted", report.Posted,
		"failed", len(report.Failures))

	return report
}

// catchUp posts every elapsed period of one subscription in a single
// transaction and publishes the events once they are committed.
func (p *SubscriptionPoster) catchUp(ctx context.Context, id int64, now time.Time) ([]core.CashFlow, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.SubscriptionTimeout)
	defer cancel()

	var posted []core.CashFlow
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		posted = posted[:0]

		sub, err := q.GetSubscriptionByID(ctx, id)
		if err != nil {
			return err
		}
		// Paused or caught up by someone else since it was listed.
		if !sub.IsActive || sub.NextPostAt.After(now) {
			return nil
		}

		cash, err := q.FirstCashAccount(ctx, sub.UserID)
		if err != nil {
			return fmt.Errorf("resolve cash account: %w", err)
		}
		category, err := ResolveOrCreate(ctx, q, sub.UserID, core.CategorySubscriptions, true, now)
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}

		cursor := sub.NextPostAt.In(p.clock.loc)
		for !cursor.After(now) {
			// Free periods are posted too, at zero.
			flow, err := q.InsertCashFlow(ctx, core.CashFlow{
				UserID:         sub.UserID,
				Type:           core.Expense,
				Amount:         sub.Amount,
				OccurredAt:     cursor,
				CreatedAt:      now,
				Description:    "Subscription: " + sub.Merchant,
				AccountID:      cash.ID,
				CategoryID:     &category.ID,
				SubscriptionID: &sub.ID,
			})
			if err != nil {
				return err
			}
			posted = append(posted, flow)
			cursor = core.Increment(cursor, sub.Frequency)
		}

		advanced, err := q.AdvanceSubscriptionCursor(ctx, sub.ID, cursor, sub.Version, now)
		if err != nil {
			return err
		}
		if !advanced {
			return core.ErrStaleCursor
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(posted) > 0 {
		slog.InfoContext(ctx, "Caught up subscription",
			"subscription_id", id,
			"posted", len(posted),
			"first", posted[0].OccurredAt.Format(time.RFC3339),
			"last", posted[len(posted)-1].OccurredAt.Format(time.RFC3339))
	}
	publishRecorded(ctx, p.publisher, posted...)
	return posted, nil
}
