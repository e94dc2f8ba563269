package services

import (
	"context"
	"strings"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// SubscriptionService manages subscription terms. Posting is done by
// SubscriptionPoster.
type SubscriptionService struct {
	repo  *storage.SQLiteRepository
	clock clock
}

func NewSubscriptionService(repo *storage.SQLiteRepository, loc *time.Location) *SubscriptionService {
	return &SubscriptionService{repo: repo, clock: newClock(loc)}
}

// SubscriptionInput creates a subscription. The first charge is posted at
// FirstPostAt, or at StartDate when FirstPostAt is nil.
type SubscriptionInput struct {
	Merchant    string
	Amount      core.Money
	Frequency   string
	StartDate   time.Time
	FirstPostAt *time.Time
	Active      *bool
}

// SubscriptionPatch changes the terms of a subscription. Nil fields are
// left as they are. Events already posted are never touched.
type SubscriptionPatch struct {
	Merchant    *string
	Amount      *core.Money
	Frequency   *string
	StartDate   *time.Time
	FirstPostAt *time.Time
	Active      *bool
}

func (s *SubscriptionService) Create(ctx context.Context, userID core.UserID, in SubscriptionInput) (core.Subscription, error) {
	now := s.clock.Now()
	sub := core.Subscription{
		UserID:     userID,
		Merchant:   strings.TrimSpace(in.Merchant),
		Amount:     in.Amount,
		Frequency:  core.ParseFrequency(in.Frequency),
		StartDate:  in.StartDate,
		IsActive:   true,
		NextPostAt: in.StartDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.FirstPostAt != nil {
		sub.NextPostAt = *in.FirstPostAt
	}
	if in.Active != nil {
		sub.IsActive = *in.Active
	}
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	return s.repo.Queries().CreateSubscription(ctx, sub)
}

func (s *SubscriptionService) Get(ctx context.Context, userID core.UserID, id int64) (core.Subscription, error) {
	return s.repo.Queries().GetSubscription(ctx, userID, id)
}

// List returns the user's subscriptions ordered by next charge.
func (s *SubscriptionService) List(ctx context.Context, userID core.UserID, activeOnly bool) ([]core.Subscription, error) {
	return s.repo.Queries().ListSubscriptions(ctx, userID, activeOnly)
}

// Update applies the patch. The cursor moves only when FirstPostAt is set.
func (s *SubscriptionService) Update(ctx context.Context, userID core.UserID, id int64, p SubscriptionPatch) (core.Subscription, error) {
	return s.modify(ctx, userID, id, func(sub *core.Subscription) {
		if p.Merchant != nil {
			sub.Merchant = strings.TrimSpace(*p.Merchant)
		}
		if p.Amount != nil {
			sub.Amount = *p.Amount
		}
		if p.Frequency != nil {
			sub.Frequency = core.ParseFrequency(*p.Frequency)
		}
		if p.StartDate != nil {
			sub.StartDate = *p.StartDate
		}
		if p.FirstPostAt != nil {
			sub.NextPostAt = *p.FirstPostAt
		}
		if p.Active != nil {
			sub.IsActive = *p.Active
		}
	})
}

// Pause stops posting. The cursor is kept.
func (s *SubscriptionService) Pause(ctx context.Context, userID core.UserID, id int64) (core.Subscription, error) {
	return s.modify(ctx, userID, id, func(sub *core.Subscription) {
		sub.IsActive = false
	})
}

// Resume restarts posting from the kept cursor, so the next run catches up
// any period that fell due while paused.
func (s *SubscriptionService) Resume(ctx context.Context, userID core.UserID, id int64) (core.Subscription, error) {
	now := s.clock.Now()
	return s.modify(ctx, userID, id, func(sub *core.Subscription) {
		sub.IsActive = true
		if sub.NextPostAt.IsZero() {
			sub.NextPostAt = now
		}
	})
}

func (s *SubscriptionService) modify(ctx context.Context, userID core.UserID, id int64, apply func(*core.Subscription)) (core.Subscription, error) {
	var out core.Subscription
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		sub, err := q.GetSubscription(ctx, userID, id)
		if err != nil {
			return err
		}
		apply(&sub)
		if err := sub.Validate(); err != nil {
			return err
		}
		sub.UpdatedAt = s.clock.Now()
		if err := q.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		out, err = q.GetSubscription(ctx, userID, id)
		return err
	})
	return out, err
}

// Delete removes the subscription. Posted events stay in the ledger and
// lose their link to it.
func (s *SubscriptionService) Delete(ctx context.Context, userID core.UserID, id int64) error {
	deleted, err := s.repo.Queries().DeleteSubscription(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return core.NotFoundf("subscription %d", id)
	}
	return nil
}

// MonthlyEquivalent totals the user's active subscriptions normalized to
// one month.
func (s *SubscriptionService) MonthlyEquivalent(ctx context.Context, userID core.UserID) (core.Money, error) {
	subs, err := s.repo.Queries().ListSubscriptions(ctx, userID, true)
	if err != nil {
		return core.Money{}, err
	}
	var total core.Money
	for _, sub := range subs {
		total = total.Add(sub.Frequency.MonthlyEquivalent(sub.Amount))
	}
	return total, nil
}
