package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budgetledger/internal/core"
)

const accountColumns = `id, owner_user_id, name, type, created_at`

func scanAccount(s scanner) (core.Account, error) {
	var (
		a         core.Account
		typ       string
		createdAt string
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Name, &typ, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.Type = core.AccountType(typ)
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = t
	return a, nil
}

func (q *Queries) CreateAccount(ctx context.Context, userID core.UserID, name string, typ core.AccountType, now time.Time) (core.Account, error) {
	name = core.NormalizeName(name)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (owner_user_id, name, name_key, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, name, core.NameKey(name), string(typ), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("account %q: %w", name, core.ErrDuplicateName)
		}
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return core.Account{ID: id, UserID: userID, Name: name, Type: typ, CreatedAt: now.UTC()}, nil
}

// GetAccount returns the account only when userID owns it.
func (q *Queries) GetAccount(ctx context.Context, userID core.UserID, id int64) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if err != nil {
		return core.Account{}, notFound(err, "account", id)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, userID core.UserID) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FirstCashAccount returns the user's canonical CASH account: the one with
// the lowest id.
func (q *Queries) FirstCashAccount(ctx context.Context, userID core.UserID) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_user_id = ? AND type = 'CASH' ORDER BY id LIMIT 1`, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNoCashAccount
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("first cash account: %w", err)
	}
	return a, nil
}

// NameTaken reports whether any account or goal of the user already uses
// the normalized name.
func (q *Queries) NameTaken(ctx context.Context, userID core.UserID, name string) (bool, error) {
	key := core.NameKey(name)
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM accounts WHERE owner_user_id = ? AND name_key = ?)
		      + (SELECT COUNT(*) FROM goals WHERE owner_user_id = ? AND name_key = ?)`,
		userID, key, userID, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check name: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) CountAccountCashFlows(ctx context.Context, accountID int64) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cash_flows WHERE account_id = ?`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count account cash flows: %w", err)
	}
	return n, nil
}

func (q *Queries) DeleteAccount(ctx context.Context, userID core.UserID, id int64) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND owner_user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	n, err := rowsAffected(res)
	return n > 0, err
}

func (q *Queries) RenameAccount(ctx context.Context, userID core.UserID, id int64, name string) error {
	name = core.NormalizeName(name)
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, name_key = ? WHERE id = ? AND owner_user_id = ?`,
		name, core.NameKey(name), id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", name, core.ErrDuplicateName)
		}
		return fmt.Errorf("rename account: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFoundf("account %d", id)
	}
	return nil
}
