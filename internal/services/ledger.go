package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// LedgerService records manual income and expenses and manages accounts.
type LedgerService struct {
	repo      *storage.SQLiteRepository
	publisher Publisher
	clock     clock
}

func NewLedgerService(repo *storage.SQLiteRepository, publisher Publisher, loc *time.Location) *LedgerService {
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		clock:     newClock(loc),
	}
}

// EntryInput describes a manual ledger entry. A zero AccountID books it on
// the user's cash account and a zero OccurredAt means now. CategoryID wins
// over CategoryName; with neither the entry is uncategorized.
type EntryInput struct {
	AccountID    int64
	Amount       core.Money
	OccurredAt   time.Time
	Description  string
	CategoryID   *int64
	CategoryName string
}

// ProvisionUser gives a new user a cash account and the default categories.
// Calling it again changes nothing.
func (s *LedgerService) ProvisionUser(ctx context.Context, userID core.UserID) (core.Account, error) {
	now := s.clock.Now()
	var cash core.Account
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		cash, err = ensureCashAccount(ctx, q, userID, now)
		if err != nil {
			return err
		}
		return ensureDefaultCategories(ctx, q, userID, now)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("provision user %d: %w", userID, err)
	}
	return cash, nil
}

// ensureCashAccount returns the canonical cash account, creating "Cash" if
// the user has none.
func ensureCashAccount(ctx context.Context, q *storage.Queries, userID core.UserID, now time.Time) (core.Account, error) {
	cash, err := q.FirstCashAccount(ctx, userID)
	if err == nil {
		return cash, nil
	}
	if !errors.Is(err, core.ErrNoCashAccount) {
		return core.Account{}, err
	}
	cash, err = q.CreateAccount(ctx, userID, core.DefaultCashAccountName, core.AccountCash, now)
	if err != nil {
		return core.Account{}, fmt.Errorf("create cash account: %w", err)
	}
	slog.InfoContext(ctx, "Created cash account", "user_id", userID, "account_id", cash.ID)
	return cash, nil
}

// CreateAccount opens a cash account. Names are unique across the user's
// accounts and goals.
func (s *LedgerService) CreateAccount(ctx context.Context, userID core.UserID, name string) (core.Account, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}
	var a core.Account
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		taken, err := q.NameTaken(ctx, userID, name)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("account %q: %w", name, core.ErrDuplicateName)
		}
		a, err = q.CreateAccount(ctx, userID, name, core.AccountCash, s.clock.Now())
		return err
	})
	return a, err
}

// ListAccounts returns every account with its derived balance.
func (s *LedgerService) ListAccounts(ctx context.Context, userID core.UserID) ([]core.AccountBalance, error) {
	var out []core.AccountBalance
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		var err error
		out, err = q.AccountBalances(ctx, userID)
		return err
	})
	return out, err
}

// DeleteAccount removes an account that no ledger event references.
// Balance derives one account's balance. An account the user does not own
// is not found.
func (s *LedgerService) Balance(ctx context.Context, userID core.UserID, accountID int64) (core.AccountBalance, error) {
	var out core.AccountBalance
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		balance, err := NewCalculator(q, s.clock.loc).AccountBalance(ctx, userID, accountID)
		if err != nil {
			return err
		}
		out = core.AccountBalance{Account: account, Balance: balance}
		return nil
	})
	return out, err
}

func (s *LedgerService) DeleteAccount(ctx context.Context, userID core.UserID, id int64) error {
	return s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, id); err != nil {
			return err
		}
		n, err := q.CountAccountCashFlows(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return core.Conflictf("account %d has %d ledger entries", id, n)
		}
		_, err = q.DeleteAccount(ctx, userID, id)
		return err
	})
}

// RecordIncome appends an INCOME event.
func (s *LedgerService) RecordIncome(ctx context.Context, userID core.UserID, in EntryInput) (core.CashFlow, error) {
	return s.record(ctx, userID, core.Income, in)
}

// RecordExpense appends an EXPENSE event. The balance may go negative.
func (s *LedgerService) RecordExpense(ctx context.Context, userID core.UserID, in EntryInput) (core.CashFlow, error) {
	return s.record(ctx, userID, core.Expense, in)
}

func (s *LedgerService) record(ctx context.Context, userID core.UserID, typ core.CashFlowType, in EntryInput) (core.CashFlow, error) {
	now := s.clock.Now()
	flow := core.CashFlow{
		UserID:      userID,
		Type:        typ,
		Amount:      in.Amount,
		OccurredAt:  in.OccurredAt,
		CreatedAt:   now,
		Description: in.Description,
		CategoryID:  in.CategoryID,
	}
	if flow.OccurredAt.IsZero() {
		flow.OccurredAt = now
	}
	if err := flow.Validate(); err != nil {
		return core.CashFlow{}, err
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if in.AccountID == 0 {
			cash, err := q.FirstCashAccount(ctx, userID)
			if err != nil {
				return err
			}
			flow.AccountID = cash.ID
		} else {
			if _, err := q.GetAccount(ctx, userID, in.AccountID); err != nil {
				return err
			}
			flow.AccountID = in.AccountID
		}

		switch {
		case in.CategoryID != nil:
			if _, err := q.GetCategory(ctx, userID, *in.CategoryID); err != nil {
				return err
			}
		case in.CategoryName != "":
			c, err := ResolveOrCreate(ctx, q, userID, in.CategoryName, false, now)
			if err != nil {
				return err
			}
			flow.CategoryID = &c.ID
		}

		var err error
		flow, err = q.InsertCashFlow(ctx, flow)
		return err
	})
	if err != nil {
		return core.CashFlow{}, err
	}

	slog.InfoContext(ctx, "Recorded cash flow",
		"id", flow.ID,
		"user_id", userID,
		"type", flow.Type,
		"amount_cents", flow.Amount.Cents,
		"account_id", flow.AccountID)

	publishRecorded(ctx, s.publisher, flow)
	return flow, nil
}

// RecentTransactions returns the user's latest events, newest first.
func (s *LedgerService) RecentTransactions(ctx context.Context, userID core.UserID, limit int) ([]core.CashFlow, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.repo.Queries().ListCashFlows(ctx, storage.CashFlowFilter{UserID: userID, Limit: limit})
}

// AccountTransactions returns the account's events within [start, end],
// newest first. Zero bounds are open.
func (s *LedgerService) AccountTransactions(ctx context.Context, userID core.UserID, accountID int64, start, end time.Time) ([]core.CashFlow, error) {
	var out []core.CashFlow
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, accountID); err != nil {
			return err
		}
		var err error
		out, err = q.ListCashFlows(ctx, storage.CashFlowFilter{UserID: userID, AccountID: &accountID, Start: start, End: end})
		return err
	})
	return out, err
}
