package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetledger/internal/core"
)

const categoryColumns = `id, owner_user_id, name, is_system, created_at`

func scanCategory(s scanner) (core.Category, error) {
	var (
		c         core.Category
		isSystem  int64
		createdAt string
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.Name, &isSystem, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.IsSystem = isSystem != 0
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = t
	return c, nil
}

// FindCategoryByName looks a category up by its case-insensitive name.
// The bool is false when no such category exists.
func (q *Queries) FindCategoryByName(ctx context.Context, userID core.UserID, name string) (core.Category, bool, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_user_id = ? AND name_key = ?`,
		userID, core.NameKey(name))
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("find category: %w", err)
	}
	return c, true, nil
}

// InsertCategoryIfAbsent creates the category unless one with the same
// normalized name exists. Concurrent callers end up with a single row.
func (q *Queries) InsertCategoryIfAbsent(ctx context.Context, userID core.UserID, name string, isSystem bool, now time.Time) (bool, error) {
	name = core.NormalizeName(name)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (owner_user_id, name, name_key, is_system, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owner_user_id, name_key) DO NOTHING`,
		userID, name, core.NameKey(name), boolInt(isSystem), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("insert category: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

// CreateCategory inserts a user category and fails on a duplicate name.
func (q *Queries) CreateCategory(ctx context.Context, userID core.UserID, name string, now time.Time) (core.Category, error) {
	name = core.NormalizeName(name)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (owner_user_id, name, name_key, is_system, created_at) VALUES (?, ?, ?, 0, ?)`,
		userID, name, core.NameKey(name), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateName)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, UserID: userID, Name: name, CreatedAt: now.UTC()}, nil
}

// PromoteCategory marks the category as system. It never clears the flag.
func (q *Queries) PromoteCategory(ctx context.Context, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE categories SET is_system = 1 WHERE id = ? AND is_system = 0`, id)
	if err != nil {
		return false, fmt.Errorf("promote category: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q *Queries) GetCategory(ctx context.Context, userID core.UserID, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND owner_user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFound(err, "category", id)
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, userID core.UserID) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_user_id = ? ORDER BY is_system DESC, name_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) RenameCategory(ctx context.Context, userID core.UserID, id int64, name string) error {
	name = core.NormalizeName(name)
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, name_key = ? WHERE id = ? AND owner_user_id = ?`,
		name, core.NameKey(name), id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", name, core.ErrDuplicateName)
		}
		return fmt.Errorf("rename category: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFoundf("category %d", id)
	}
	return nil
}

func (q *Queries) DeleteCategory(ctx context.Context, userID core.UserID, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}
