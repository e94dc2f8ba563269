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

// CategoryService manages a user's categories. System categories cannot be
// renamed, deleted or merged away.
type CategoryService struct {
	repo  *storage.SQLiteRepository
	clock clock
}

func NewCategoryService(repo *storage.SQLiteRepository, loc *time.Location) *CategoryService {
	return &CategoryService{repo: repo, clock: newClock(loc)}
}

// List returns the user's categories, creating missing defaults first.
func (s *CategoryService) List(ctx context.Context, userID core.UserID) ([]core.Category, error) {
	var out []core.Category
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := ensureDefaultCategories(ctx, q, userID, s.clock.Now()); err != nil {
			return err
		}
		var err error
		out, err = q.ListCategories(ctx, userID)
		return err
	})
	return out, err
}

func (s *CategoryService) Get(ctx context.Context, userID core.UserID, id int64) (core.Category, error) {
	return s.repo.Queries().GetCategory(ctx, userID, id)
}

// Create adds a user category. The name must not exist yet.
func (s *CategoryService) Create(ctx context.Context, userID core.UserID, name string) (core.Category, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	return s.repo.Queries().CreateCategory(ctx, userID, name, s.clock.Now())
}

func (s *CategoryService) Rename(ctx context.Context, userID core.UserID, id int64, name string) (core.Category, error) {
	name = core.NormalizeName(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	var out core.Category
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		if c.IsSystem {
			return fmt.Errorf("rename %q: %w", c.Name, core.ErrSystemCategory)
		}
		if err := q.RenameCategory(ctx, userID, id, name); err != nil {
			return err
		}
		out, err = q.GetCategory(ctx, userID, id)
		return err
	})
	return out, err
}

// Delete removes a user category with its budgets. Its ledger events move
// to Uncategorized.
func (s *CategoryService) Delete(ctx context.Context, userID core.UserID, id int64) error {
	return s.repo.WithTx(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		if c.IsSystem {
			return fmt.Errorf("delete %q: %w", c.Name, core.ErrSystemCategory)
		}
		if err := q.DeleteCategoryBudgets(ctx, userID, id); err != nil {
			return err
		}
		uncategorized, err := ResolveOrCreate(ctx, q, userID, core.CategoryUncategorized, true, s.clock.Now())
		if err != nil {
			return err
		}
		moved, err := q.ReassignCategory(ctx, userID, []int64{id}, uncategorized.ID)
		if err != nil {
			return err
		}
		if _, err := q.DeleteCategory(ctx, userID, id); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Deleted category",
			"user_id", userID,
			"category_id", id,
			"reassigned", moved)
		return nil
	})
}

// Merge folds the source categories into target and returns how many ledger
// events moved. System sources and the target itself are skipped. With
// mergeBudgets the sources' budgets move to target, summed when target
// already has one for the month; otherwise they are dropped.
func (s *CategoryService) Merge(ctx context.Context, userID core.UserID, sourceIDs []int64, targetID int64, mergeBudgets bool) (int64, error) {
	var moved int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetCategory(ctx, userID, targetID); err != nil {
			return err
		}

		seen := map[int64]bool{targetID: true}
		var sources []int64
		for _, id := range sourceIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			c, err := q.GetCategory(ctx, userID, id)
			if err != nil {
				return err
			}
			if c.IsSystem {
				slog.InfoContext(ctx, "Skipping system category in merge", "category_id", id, "name", c.Name)
				continue
			}
			sources = append(sources, id)
		}
		if len(sources) == 0 {
			return nil
		}

		for _, id := range sources {
			if err := s.mergeBudgets(ctx, q, userID, id, targetID, mergeBudgets); err != nil {
				return err
			}
		}

		var err error
		if moved, err = q.ReassignCategory(ctx, userID, sources, targetID); err != nil {
			return err
		}
		for _, id := range sources {
			if _, err := q.DeleteCategory(ctx, userID, id); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "Merged categories",
			"user_id", userID,
			"target_id", targetID,
			"sources", sources,
			"reassigned", moved)
		return nil
	})
	return moved, err
}

func (s *CategoryService) mergeBudgets(ctx context.Context, q *storage.Queries, userID core.UserID, sourceID, targetID int64, merge bool) error {
	if !merge {
		return q.DeleteCategoryBudgets(ctx, userID, sourceID)
	}
	budgets, err := q.ListBudgets(ctx, userID, &sourceID, nil)
	if err != nil {
		return err
	}
	for _, b := range budgets {
		existing, err := q.GetBudget(ctx, userID, targetID, b.YearMonth)
		switch {
		case err == nil:
			if err := q.UpdateBudgetAmount(ctx, existing.ID, existing.Amount.Add(b.Amount)); err != nil {
				return err
			}
			if err := q.DeleteBudgetByID(ctx, b.ID); err != nil {
				return err
			}
		case errors.Is(err, core.ErrNotFound):
			if err := q.MoveBudget(ctx, b.ID, targetID); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// Summary reports the category's activity in one month against its budget.
func (s *CategoryService) Summary(ctx context.Context, userID core.UserID, id int64, month string) (core.CategorySummary, error) {
	ym, start, end, err := s.clock.monthRange(month)
	if err != nil {
		return core.CategorySummary{}, err
	}

	var out core.CategorySummary
	err = s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		c, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		calc := NewCalculator(q, s.clock.loc)
		budget, err := calc.BudgetSummary(ctx, userID, id, ym)
		if err != nil {
			return err
		}
		income, err := calc.CategorySpend(ctx, userID, id, start, end, core.Income)
		if err != nil {
			return err
		}
		count, err := q.CountCashFlows(ctx, storage.CashFlowFilter{UserID: userID, CategoryID: &id, Start: start, End: end})
		if err != nil {
			return err
		}
		out = core.CategorySummary{Category: c, BudgetSummary: budget, Count: count, Income: income}
		return nil
	})
	return out, err
}

// Records lists the category's events in one month, newest first. An empty
// typ returns both income and expense.
func (s *CategoryService) Records(ctx context.Context, userID core.UserID, id int64, month string, typ core.CashFlowType) ([]core.CashFlow, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.Invalidf("invalid cash flow type %q", typ)
	}
	_, start, end, err := s.clock.monthRange(month)
	if err != nil {
		return nil, err
	}
	var out []core.CashFlow
	err = s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		if _, err := q.GetCategory(ctx, userID, id); err != nil {
			return err
		}
		var err error
		out, err = q.ListCashFlows(ctx, storage.CashFlowFilter{
			UserID: userID, CategoryID: &id, Type: typ, Start: start, End: end,
		})
		return err
	})
	return out, err
}
