package storage

import (
	"context"
	"fmt"
	"time"

	"budgetledger/internal/core"
)

const subscriptionColumns = `id, owner_user_id, merchant, amount_cents, frequency, start_date, is_active, next_post_at, version, created_at, updated_at`

func scanSubscription(s scanner) (core.Subscription, error) {
	var (
		sub      core.Subscription
		freq     string
		isActive int64
	)
	var startDate, nextPostAt, createdAt, updatedAt string
	if err := s.Scan(&sub.ID, &sub.UserID, &sub.Merchant, &sub.Amount.Cents, &freq, &startDate,
		&isActive, &nextPostAt, &sub.Version, &createdAt, &updatedAt); err != nil {
		return core.Subscription{}, err
	}
	sub.Frequency = core.Frequency(freq)
	sub.IsActive = isActive != 0
	var err error
	for _, f := range []struct {
		dst *time.Time
		src string
	}{
		{&sub.StartDate, startDate},
		{&sub.NextPostAt, nextPostAt},
		{&sub.CreatedAt, createdAt},
		{&sub.UpdatedAt, updatedAt},
	} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return core.Subscription{}, err
		}
	}
	return sub, nil
}

func (q *Queries) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO subscriptions (owner_user_id, merchant, amount_cents, frequency, start_date, is_active, next_post_at, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		s.UserID, s.Merchant, s.Amount.Cents, string(s.Frequency), formatTime(s.StartDate),
		boolInt(s.IsActive), formatTime(s.NextPostAt), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return core.Subscription{}, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("subscription id: %w", err)
	}
	return q.GetSubscriptionByID(ctx, id)
}

// GetSubscription returns the subscription only when userID owns it.
func (q *Queries) GetSubscription(ctx context.Context, userID core.UserID, id int64) (core.Subscription, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ? AND owner_user_id = ?`, id, userID)
	s, err := scanSubscription(row)
	if err != nil {
		return core.Subscription{}, notFound(err, "subscription", id)
	}
	return s, nil
}

func (q *Queries) GetSubscriptionByID(ctx context.Context, id int64) (core.Subscription, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	s, err := scanSubscription(row)
	if err != nil {
		return core.Subscription{}, notFound(err, "subscription", id)
	}
	return s, nil
}

func (q *Queries) ListSubscriptions(ctx context.Context, userID core.UserID, activeOnly bool) ([]core.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE owner_user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY next_post_at, id`
	return q.listSubscriptions(ctx, query, userID)
}

// ListDueSubscriptions returns every active subscription whose cursor is at
// or before now, across all users.
func (q *Queries) ListDueSubscriptions(ctx context.Context, now time.Time) ([]core.Subscription, error) {
	return q.listSubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE is_active = 1 AND next_post_at <= ? ORDER BY next_post_at, id`,
		formatTime(now))
}

func (q *Queries) listSubscriptions(ctx context.Context, query string, args ...any) ([]core.Subscription, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateSubscription writes merchant, amount, frequency, start date, active
// flag and cursor, and bumps the version.
func (q *Queries) UpdateSubscription(ctx context.Context, s core.Subscription) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE subscriptions
		    SET merchant = ?, amount_cents = ?, frequency = ?, start_date = ?, is_active = ?,
		        next_post_at = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND owner_user_id = ?`,
		s.Merchant, s.Amount.Cents, string(s.Frequency), formatTime(s.StartDate), boolInt(s.IsActive),
		formatTime(s.NextPostAt), formatTime(s.UpdatedAt), s.ID, s.UserID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFoundf("subscription %d", s.ID)
	}
	return nil
}

// AdvanceSubscriptionCursor moves the cursor only if nobody changed the row
// since it was read at expectedVersion. False means the write lost.
func (q *Queries) AdvanceSubscriptionCursor(ctx context.Context, id int64, next time.Time, expectedVersion int64, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE subscriptions SET next_post_at = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND version = ?`,
		formatTime(next), formatTime(now), id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("advance subscription cursor: %w", err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (q *Queries) DeleteSubscription(ctx context.Context, userID core.UserID, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ? AND owner_user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}
