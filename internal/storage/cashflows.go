package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"budgetledger/internal/core"
)

const cashFlowColumns = `id, owner_user_id, type, amount_cents, occurred_at, created_at, description, account_id, category_id, subscription_id`

// signedAmount is the SQL expression for an event's contribution to a balance.
const signedAmount = `CASE WHEN type = 'INCOME' THEN amount_cents ELSE -amount_cents END`

func scanCashFlow(s scanner) (core.CashFlow, error) {
	var (
		c                     core.CashFlow
		typ                   string
		occurredAt, createdAt string
		categoryID, subID     sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.UserID, &typ, &c.Amount.Cents, &occurredAt, &createdAt,
		&c.Description, &c.AccountID, &categoryID, &subID); err != nil {
		return core.CashFlow{}, err
	}
	c.Type = core.CashFlowType(typ)
	var err error
	if c.OccurredAt, err = parseTime(occurredAt); err != nil {
		return core.CashFlow{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.CashFlow{}, err
	}
	c.CategoryID = int64Ptr(categoryID)
	c.SubscriptionID = int64Ptr(subID)
	return c, nil
}

// InsertCashFlow appends one ledger event and returns it with its id.
func (q *Queries) InsertCashFlow(ctx context.Context, c core.CashFlow) (core.CashFlow, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO cash_flows (owner_user_id, type, amount_cents, occurred_at, created_at, description, account_id, category_id, subscription_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, string(c.Type), c.Amount.Cents, formatTime(c.OccurredAt), formatTime(c.CreatedAt),
		c.Description, c.AccountID, nullInt64(c.CategoryID), nullInt64(c.SubscriptionID))
	if err != nil {
		return core.CashFlow{}, fmt.Errorf("insert cash flow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.CashFlow{}, fmt.Errorf("cash flow id: %w", err)
	}
	c.ID = id
	c.OccurredAt = c.OccurredAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (q *Queries) GetCashFlow(ctx context.Context, id int64) (core.CashFlow, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+cashFlowColumns+` FROM cash_flows WHERE id = ?`, id)
	c, err := scanCashFlow(row)
	if err != nil {
		return core.CashFlow{}, notFound(err, "cash flow", id)
	}
	return c, nil
}

// CashFlowFilter narrows ListCashFlows. Zero values mean "any"; Start and
// End are inclusive.
type CashFlowFilter struct {
	UserID     core.UserID
	AccountID  *int64
	CategoryID *int64
	Type       core.CashFlowType
	Start      time.Time
	End        time.Time
	Limit      int
}

func (f CashFlowFilter) where() (string, []any) {
	clauses := []string{"owner_user_id = ?"}
	args := []any{f.UserID}
	if f.AccountID != nil {
		clauses = append(clauses, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "occurred_at <= ?")
		args = append(args, formatTime(f.End))
	}
	return strings.Join(clauses, " AND "), args
}

// ListCashFlows returns matching events, newest first.
func (q *Queries) ListCashFlows(ctx context.Context, f CashFlowFilter) ([]core.CashFlow, error) {
	where, args := f.where()
	query := `SELECT ` + cashFlowColumns + ` FROM cash_flows WHERE ` + where + ` ORDER BY occurred_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cash flows: %w", err)
	}
	defer rows.Close()

	var out []core.CashFlow
	for rows.Next() {
		c, err := scanCashFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cash flow: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SumCashFlows totals the amounts of matching events. Filter.Type should be
// set; without it income and expense are added together.
func (q *Queries) SumCashFlows(ctx context.Context, f CashFlowFilter) (core.Money, error) {
	where, args := f.where()
	var cents int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM cash_flows WHERE `+where, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum cash flows: %w", err)
	}
	return core.Cents(cents), nil
}

func (q *Queries) CountCashFlows(ctx context.Context, f CashFlowFilter) (int64, error) {
	where, args := f.where()
	var n int64
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cash_flows WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cash flows: %w", err)
	}
	return n, nil
}

// AccountBalance derives the balance of one account from its events. An
// account with no events has a zero balance.
func (q *Queries) AccountBalance(ctx context.Context, userID core.UserID, accountID int64) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(`+signedAmount+`), 0) FROM cash_flows WHERE owner_user_id = ? AND account_id = ?`,
		userID, accountID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("account balance: %w", err)
	}
	return core.Cents(cents), nil
}

// TotalBalance derives the user's balance across all accounts.
func (q *Queries) TotalBalance(ctx context.Context, userID core.UserID) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(`+signedAmount+`), 0) FROM cash_flows WHERE owner_user_id = ?`,
		userID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total balance: %w", err)
	}
	return core.Cents(cents), nil
}

// AccountBalances derives the balance of every account of the user.
func (q *Queries) AccountBalances(ctx context.Context, userID core.UserID) ([]core.AccountBalance, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT a.id, a.owner_user_id, a.name, a.type, a.created_at,
		        COALESCE(SUM(CASE WHEN c.type = 'INCOME' THEN c.amount_cents ELSE -c.amount_cents END), 0)
		   FROM accounts a
		   LEFT JOIN cash_flows c ON c.account_id = a.id
		  WHERE a.owner_user_id = ?
		  GROUP BY a.id
		  ORDER BY a.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}
	defer rows.Close()

	var out []core.AccountBalance
	for rows.Next() {
		var (
			ab        core.AccountBalance
			typ       string
			createdAt string
		)
		if err := rows.Scan(&ab.Account.ID, &ab.Account.UserID, &ab.Account.Name, &typ, &createdAt, &ab.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account balance: %w", err)
		}
		ab.Account.Type = core.AccountType(typ)
		if ab.Account.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, ab)
	}
	return out, rows.Err()
}

// ExpenseByCategory totals expenses per category within [start, end].
// Events without a category are grouped under a nil id.
func (q *Queries) ExpenseByCategory(ctx context.Context, userID core.UserID, start, end time.Time) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.category_id, COALESCE(cat.name, ''), SUM(c.amount_cents)
		   FROM cash_flows c
		   LEFT JOIN categories cat ON cat.id = c.category_id
		  WHERE c.owner_user_id = ? AND c.type = 'EXPENSE' AND c.occurred_at >= ? AND c.occurred_at <= ?
		  GROUP BY c.category_id
		  ORDER BY SUM(c.amount_cents) DESC`,
		userID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("expense by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			ca  core.CategoryAmount
			cid sql.NullInt64
		)
		if err := rows.Scan(&cid, &ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category amount: %w", err)
		}
		ca.CategoryID = int64Ptr(cid)
		out = append(out, ca)
	}
	return out, rows.Err()
}

// ReassignCategory moves the user's events from the given categories to
// target and returns how many were moved.
func (q *Queries) ReassignCategory(ctx context.Context, userID core.UserID, from []int64, target int64) (int64, error) {
	if len(from) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []any{target, userID}
	for _, id := range from {
		args = append(args, id)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE cash_flows SET category_id = ? WHERE owner_user_id = ? AND category_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("reassign category: %w", err)
	}
	return rowsAffected(res)
}

// PendingExport returns ids of events not yet exported, oldest first.
func (q *Queries) PendingExport(ctx context.Context, limit int) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM cash_flows WHERE exported_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending export: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkExported records when an event was exported. Export bookkeeping is
// the only column written after insert besides the category reference.
func (q *Queries) MarkExported(ctx context.Context, id int64, at time.Time) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE cash_flows SET exported_at = ? WHERE id = ? AND exported_at IS NULL`, formatTime(at), id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (q *Queries) IsExported(ctx context.Context, id int64) (bool, error) {
	var exportedAt sql.NullString
	if err := q.db.QueryRowContext(ctx, `SELECT exported_at FROM cash_flows WHERE id = ?`, id).Scan(&exportedAt); err != nil {
		return false, notFound(err, "cash flow", id)
	}
	return exportedAt.Valid, nil
}
