package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budgetledger/internal/core"
)

const budgetColumns = `id, owner_user_id, category_id, year_month, amount_cents, custom_name`

func scanBudget(s scanner) (core.CategoryBudget, error) {
	var (
		b  core.CategoryBudget
		ym string
		cn sql.NullString
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.CategoryID, &ym, &b.Amount.Cents, &cn); err != nil {
		return core.CategoryBudget{}, err
	}
	t, err := time.Parse("2006-01", ym)
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("parse stored month %q: %w", ym, err)
	}
	b.YearMonth = core.YearMonthOf(t)
	b.CustomName = stringPtr(cn)
	return b, nil
}

// UpsertBudget sets the budget of a category for one month, replacing the
// amount and custom name if a budget already exists.
func (q *Queries) UpsertBudget(ctx context.Context, b core.CategoryBudget) (core.CategoryBudget, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO category_budgets (owner_user_id, category_id, year_month, amount_cents, custom_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owner_user_id, category_id, year_month)
		 DO UPDATE SET amount_cents = excluded.amount_cents, custom_name = excluded.custom_name`,
		b.UserID, b.CategoryID, b.YearMonth.String(), b.Amount.Cents, nullString(b.CustomName))
	if err != nil {
		return core.CategoryBudget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return q.GetBudget(ctx, b.UserID, b.CategoryID, b.YearMonth)
}

// GetBudget returns core.ErrNotFound when no budget is set for the month.
func (q *Queries) GetBudget(ctx context.Context, userID core.UserID, categoryID int64, ym core.YearMonth) (core.CategoryBudget, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM category_budgets WHERE owner_user_id = ? AND category_id = ? AND year_month = ?`,
		userID, categoryID, ym.String())
	b, err := scanBudget(row)
	if err != nil {
		return core.CategoryBudget{}, notFound(err, "budget for category", categoryID)
	}
	return b, nil
}

// ListBudgets returns the user's budgets, optionally narrowed to one
// category and one month.
func (q *Queries) ListBudgets(ctx context.Context, userID core.UserID, categoryID *int64, ym *core.YearMonth) ([]core.CategoryBudget, error) {
	query := `SELECT ` + budgetColumns + ` FROM category_budgets WHERE owner_user_id = ?`
	args := []any{userID}
	if categoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *categoryID)
	}
	if ym != nil {
		query += ` AND year_month = ?`
		args = append(args, ym.String())
	}
	query += ` ORDER BY year_month, category_id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) UpdateBudgetAmount(ctx context.Context, id int64, amount core.Money) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE category_budgets SET amount_cents = ? WHERE id = ?`, amount.Cents, id); err != nil {
		return fmt.Errorf("update budget amount: %w", err)
	}
	return nil
}

func (q *Queries) MoveBudget(ctx context.Context, id, categoryID int64) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE category_budgets SET category_id = ? WHERE id = ?`, categoryID, id); err != nil {
		return fmt.Errorf("move budget: %w", err)
	}
	return nil
}

func (q *Queries) DeleteBudgetByID(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM category_budgets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// DeleteBudget reports whether a budget existed for the month.
func (q *Queries) DeleteBudget(ctx context.Context, userID core.UserID, categoryID int64, ym core.YearMonth) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM category_budgets WHERE owner_user_id = ? AND category_id = ? AND year_month = ?`,
		userID, categoryID, ym.String())
	if err != nil {
		return false, fmt.Errorf("delete budget: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q *Queries) DeleteCategoryBudgets(ctx context.Context, userID core.UserID, categoryID int64) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM category_budgets WHERE owner_user_id = ? AND category_id = ?`, userID, categoryID); err != nil {
		return fmt.Errorf("delete category budgets: %w", err)
	}
	return nil
}
