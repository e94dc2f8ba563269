package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetledger/internal/core"
	"budgetledger/internal/storage"
)

// GoalService manages savings goals. Every goal owns a GOAL account that
// receives its contributions, so goal money shows up in derived balances.
type GoalService struct {
	repo      *storage.SQLiteRepository
	publisher Publisher
	clock     clock
}

func NewGoalService(repo *storage.SQLiteRepository, publisher Publisher, loc *time.Location) *GoalService {
	return &GoalService{repo: repo, publisher: publisher, clock: newClock(loc)}
}

// GoalInput creates a goal.
type GoalInput struct {
	Name         string
	TargetAmount core.Money
	DueDate      *time.Time
}

// GoalPatch changes a goal. Nil fields are left as they are.
type GoalPatch struct {
	Name         *string
	TargetAmount *core.Money
	DueDate      *time.Time
}

// Create adds the goal and its linked GOAL account under the same name. The
// name must be free among the user's goals and accounts.
func (s *GoalService) Create(ctx context.Context, userID core.UserID, in GoalInput) (core.Goal, error) {
	name := core.NormalizeName(in.Name)
	if name == "" {
		return core.Goal{}, core.ErrEmptyName
	}
	if in.TargetAmount.IsNegative() {
		return core.Goal{}, core.Invalidf("target amount must not be negative")
	}

	now := s.clock.Now()
	var goal core.Goal
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		taken, err := q.NameTaken(ctx, userID, name)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("goal %q: %w", name, core.ErrDuplicateName)
		}
		account, err := q.CreateAccount(ctx, userID, name, core.AccountGoal, now)
		if err != nil {
			return err
		}
		goal, err = q.CreateGoal(ctx, core.Goal{
			UserID:          userID,
			Name:            name,
			TargetAmount:    in.TargetAmount,
			DueDate:         in.DueDate,
			Status:          core.GoalInProgress,
			LinkedAccountID: &account.ID,
			CreatedAt:       now,
		})
		return err
	})
	return goal, err
}

func (s *GoalService) Get(ctx context.Context, userID core.UserID, id int64) (core.Goal, error) {
	return s.repo.Queries().GetGoal(ctx, userID, id)
}

// List returns the user's goals, newest first.
func (s *GoalService) List(ctx context.Context, userID core.UserID) ([]core.Goal, error) {
	return s.repo.Queries().ListGoals(ctx, userID)
}

// Update renames the goal and its account, or changes its target or due
// date. Lowering the target to the saved amount completes the goal; raising
// it never reopens one.
func (s *GoalService) Update(ctx context.Context, userID core.UserID, id int64, p GoalPatch) (core.Goal, error) {
	var goal core.Goal
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		goal, err = q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			name := core.NormalizeName(*p.Name)
			if name == "" {
				return core.ErrEmptyName
			}
			if core.NameKey(name) != core.NameKey(goal.Name) {
				taken, err := q.NameTaken(ctx, userID, name)
				if err != nil {
					return err
				}
				if taken {
					return fmt.Errorf("goal %q: %w", name, core.ErrDuplicateName)
				}
			}
			if goal.LinkedAccountID != nil {
				if err := q.RenameAccount(ctx, userID, *goal.LinkedAccountID, name); err != nil {
					return err
				}
			}
			goal.Name = name
		}
		if p.TargetAmount != nil {
			if p.TargetAmount.IsNegative() {
				return core.Invalidf("target amount must not be negative")
			}
			goal.TargetAmount = *p.TargetAmount
		}
		if p.DueDate != nil {
			due := *p.DueDate
			goal.DueDate = &due
		}
		if goal.Status == core.GoalInProgress && goal.TargetAmount.IsPositive() && goal.Reached() {
			goal.Status = core.GoalCompleted
		}
		return q.UpdateGoal(ctx, goal)
	})
	return goal, err
}

// Contribute moves amount from one of the user's accounts into the goal.
// The source must hold at least amount. Both ledger events, the transfer
// record and the new saved amount commit together.
func (s *GoalService) Contribute(ctx context.Context, userID core.UserID, fromAccountID, goalID int64, amount core.Money) (core.ContributionResult, error) {
	if !amount.IsPositive() {
		return core.ContributionResult{}, core.ErrInvalidAmount
	}

	now := s.clock.Now()
	var (
		result core.ContributionResult
		flows  []core.CashFlow
	)
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		flows = flows[:0]

		source, err := q.GetAccount(ctx, userID, fromAccountID)
		if err != nil {
			return err
		}
		goal, err := q.GetGoal(ctx, userID, goalID)
		if err != nil {
			return err
		}
		if goal.LinkedAccountID == nil {
			return core.Conflictf("goal %d has no linked account", goalID)
		}
		if *goal.LinkedAccountID == source.ID {
			return core.Invalidf("cannot contribute to a goal from its own account")
		}

		calc := NewCalculator(q, s.clock.loc)
		balance, err := calc.AccountBalance(ctx, userID, source.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return fmt.Errorf("account %d holds %s, needs %s: %w", source.ID, balance, amount, core.ErrInsufficientFunds)
		}

		category, err := ResolveOrCreate(ctx, q, userID, core.CategoryGoalTransfer, true, now)
		if err != nil {
			return err
		}

		out, err := q.InsertCashFlow(ctx, core.CashFlow{
			UserID:      userID,
			Type:        core.Expense,
			Amount:      amount,
			OccurredAt:  now,
			CreatedAt:   now,
			Description: "Goal contribution to " + goal.Name,
			AccountID:   source.ID,
			CategoryID:  &category.ID,
		})
		if err != nil {
			return err
		}
		in, err := q.InsertCashFlow(ctx, core.CashFlow{
			UserID:      userID,
			Type:        core.Income,
			Amount:      amount,
			OccurredAt:  now,
			CreatedAt:   now,
			Description: "Goal contribution from " + source.Name,
			AccountID:   *goal.LinkedAccountID,
			CategoryID:  &category.ID,
		})
		if err != nil {
			return err
		}
		flows = append(flows, out, in)

		transfer, err := q.InsertTransfer(ctx, core.Transfer{
			UserID:        userID,
			FromAccountID: source.ID,
			ToAccountID:   *goal.LinkedAccountID,
			Amount:        amount,
			CreatedAt:     now,
		})
		if err != nil {
			return err
		}

		goal.SavedAmount = goal.SavedAmount.Add(amount)
		if goal.Reached() {
			goal.Status = core.GoalCompleted
		}
		if err := q.UpdateGoal(ctx, goal); err != nil {
			return err
		}

		result = core.ContributionResult{Goal: goal, Transfer: transfer}
		if result.SourceBalance, err = calc.AccountBalance(ctx, userID, source.ID); err != nil {
			return err
		}
		result.GoalBalance, err = calc.AccountBalance(ctx, userID, *goal.LinkedAccountID)
		return err
	})
	if err != nil {
		return core.ContributionResult{}, err
	}

	slog.InfoContext(ctx, "Goal contribution recorded",
		"user_id", userID,
		"goal_id", goalID,
		"from_account_id", fromAccountID,
		"amount_cents", amount.Cents,
		"status", result.Goal.Status)

	publishRecorded(ctx, s.publisher, flows...)
	return result, nil
}

// Delete removes the goal. A saved amount is refunded from the goal account
// to the user's cash account, which is created if missing. The goal account
// itself is kept because ledger events reference it.
func (s *GoalService) Delete(ctx context.Context, userID core.UserID, id int64) error {
	now := s.clock.Now()
	var flows []core.CashFlow
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		flows = flows[:0]

		goal, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}

		if goal.SavedAmount.IsPositive() && goal.LinkedAccountID != nil {
			cash, err := ensureCashAccount(ctx, q, userID, now)
			if err != nil {
				return err
			}
			category, err := ResolveOrCreate(ctx, q, userID, core.CategoryGoalTransfer, true, now)
			if err != nil {
				return err
			}
			if _, err := q.InsertTransfer(ctx, core.Transfer{
				UserID:        userID,
				FromAccountID: *goal.LinkedAccountID,
				ToAccountID:   cash.ID,
				Amount:        goal.SavedAmount,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
			out, err := q.InsertCashFlow(ctx, core.CashFlow{
				UserID:      userID,
				Type:        core.Expense,
				Amount:      goal.SavedAmount,
				OccurredAt:  now,
				CreatedAt:   now,
				Description: "Goal refund to cash from " + goal.Name,
				AccountID:   *goal.LinkedAccountID,
				CategoryID:  &category.ID,
			})
			if err != nil {
				return err
			}
			in, err := q.InsertCashFlow(ctx, core.CashFlow{
				UserID:      userID,
				Type:        core.Income,
				Amount:      goal.SavedAmount,
				OccurredAt:  now,
				CreatedAt:   now,
				Description: "Goal refund received from " + goal.Name,
				AccountID:   cash.ID,
				CategoryID:  &category.ID,
			})
			if err != nil {
				return err
			}
			flows = append(flows, out, in)
		} else if goal.SavedAmount.IsPositive() {
			slog.WarnContext(ctx, "Goal has savings but no linked account, nothing to refund",
				"goal_id", id, "saved_cents", goal.SavedAmount.Cents)
		}

		_, err = q.DeleteGoal(ctx, userID, id)
		return err
	})
	if err != nil {
		return err
	}
	publishRecorded(ctx, s.publisher, flows...)
	return nil
}

// Contributions lists the events booked on the goal's account within
// [from, to], newest first. Zero bounds are open.
func (s *GoalService) Contributions(ctx context.Context, userID core.UserID, id int64, from, to time.Time) ([]core.CashFlow, error) {
	var out []core.CashFlow
	err := s.repo.ReadSnapshot(ctx, func(q *storage.Queries) error {
		goal, err := q.GetGoal(ctx, userID, id)
		if err != nil {
			return err
		}
		if goal.LinkedAccountID == nil {
			return nil
		}
		out, err = q.ListCashFlows(ctx, storage.CashFlowFilter{
			UserID:    userID,
			AccountID: goal.LinkedAccountID,
			Start:     from,
			End:       to,
		})
		return err
	})
	return out, err
}
