package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budgetledger/internal/core"
)

const goalColumns = `id, owner_user_id, name, target_cents, saved_cents, due_date, status, linked_account_id, created_at`

func scanGoal(s scanner) (core.Goal, error) {
	var (
		g         core.Goal
		dueDate   sql.NullString
		status    string
		linked    sql.NullInt64
		createdAt string
	)
	if err := s.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents, &g.SavedAmount.Cents,
		&dueDate, &status, &linked, &createdAt); err != nil {
		return core.Goal{}, err
	}
	g.Status = core.GoalStatus(status)
	g.LinkedAccountID = int64Ptr(linked)
	var err error
	if g.DueDate, err = parseNullTime(dueDate); err != nil {
		return core.Goal{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

func (q *Queries) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.Name = core.NormalizeName(g.Name)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO goals (owner_user_id, name, name_key, target_cents, saved_cents, due_date, status, linked_account_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Name, core.NameKey(g.Name), g.TargetAmount.Cents, g.SavedAmount.Cents,
		nullTime(g.DueDate), string(g.Status), nullInt64(g.LinkedAccountID), formatTime(g.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Goal{}, fmt.Errorf("goal %q: %w", g.Name, core.ErrDuplicateName)
		}
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal id: %w", err)
	}
	return q.GetGoal(ctx, g.UserID, id)
}

// GetGoal returns the goal only when userID owns it.
func (q *Queries) GetGoal(ctx context.Context, userID core.UserID, id int64) (core.Goal, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_user_id = ?`, id, userID)
	g, err := scanGoal(row)
	if err != nil {
		return core.Goal{}, notFound(err, "goal", id)
	}
	return g, nil
}

func (q *Queries) ListGoals(ctx context.Context, userID core.UserID) ([]core.Goal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE owner_user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGoal writes every mutable field of the goal.
func (q *Queries) UpdateGoal(ctx context.Context, g core.Goal) error {
	g.Name = core.NormalizeName(g.Name)
	res, err := q.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, name_key = ?, target_cents = ?, saved_cents = ?, due_date = ?, status = ?
		  WHERE id = ? AND owner_user_id = ?`,
		g.Name, core.NameKey(g.Name), g.TargetAmount.Cents, g.SavedAmount.Cents,
		nullTime(g.DueDate), string(g.Status), g.ID, g.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("goal %q: %w", g.Name, core.ErrDuplicateName)
		}
		return fmt.Errorf("update goal: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFoundf("goal %d", g.ID)
	}
	return nil
}

func (q *Queries) DeleteGoal(ctx context.Context, userID core.UserID, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND owner_user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete goal: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q *Queries) InsertTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transfers (owner_user_id, from_account_id, to_account_id, amount_cents, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.FromAccountID, t.ToAccountID, t.Amount.Cents, formatTime(t.CreatedAt))
	if err != nil {
		return core.Transfer{}, fmt.Errorf("insert transfer: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return core.Transfer{}, fmt.Errorf("transfer id: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// ListTransfers returns transfers touching the account, newest first.
func (q *Queries) ListTransfers(ctx context.Context, userID core.UserID, accountID int64) ([]core.Transfer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, owner_user_id, from_account_id, to_account_id, amount_cents, created_at
		   FROM transfers
		  WHERE owner_user_id = ? AND (from_account_id = ? OR to_account_id = ?)
		  ORDER BY id DESC`, userID, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		var (
			t         core.Transfer
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.FromAccountID, &t.ToAccountID, &t.Amount.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SumTransfers totals the user's transfers created within [start, end].
func (q *Queries) SumTransfers(ctx context.Context, userID core.UserID, start, end time.Time) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transfers
		  WHERE owner_user_id = ? AND created_at >= ? AND created_at <= ?`,
		userID, formatTime(start), formatTime(end)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum transfers: %w", err)
	}
	return core.Cents(cents), nil
}

// GoalTotals sums saved and target amounts across the user's goals.
func (q *Queries) GoalTotals(ctx context.Context, userID core.UserID) (saved, target core.Money, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(saved_cents), 0), COALESCE(SUM(target_cents), 0) FROM goals WHERE owner_user_id = ?`,
		userID).Scan(&saved.Cents, &target.Cents)
	if err != nil {
		return core.Money{}, core.Money{}, fmt.Errorf("goal totals: %w", err)
	}
	return saved, target, nil
}
