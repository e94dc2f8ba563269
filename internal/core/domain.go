package core

import (
	"strings"
	"time"
)

const (
	AccountCash AccountType = "CASH"
	AccountGoal AccountType = "GOAL"

	Income  CashFlowType = "INCOME"
	Expense CashFlowType = "EXPENSE"

	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalCompleted  GoalStatus = "COMPLETED"
)

// System category names the engine and the goal transfer rely on.
const (
	CategoryUncategorized = "Uncategorized"
	CategorySubscriptions = "Subscriptions"
	CategoryGoalTransfer  = "Goal Transfer"
	CategoryIncome        = "Income"

	DefaultCashAccountName = "Cash"
)

// DefaultCategories are created as system categories the first time a user
// lists their categories.
var DefaultCategories = []string{
	CategoryUncategorized,
	CategoryIncome,
	"Food",
	"Groceries",
	"Transport",
	"Shopping",
	"Entertainment",
	"Education",
	"Health",
	"Fitness",
	"Housing",
	"Utilities",
	"Other",
	CategorySubscriptions,
	CategoryGoalTransfer,
}

type (
	UserID int64

	AccountType  string
	CashFlowType string
	GoalStatus   string

	Account struct {
		ID        int64
		UserID    UserID
		Name      string
		Type      AccountType
		CreatedAt time.Time
	}

	Category struct {
		ID        int64
		UserID    UserID
		Name      string
		IsSystem  bool
		CreatedAt time.Time
	}

	CategoryBudget struct {
		ID         int64
		UserID     UserID
		CategoryID int64
		YearMonth  YearMonth
		Amount     Money
		CustomName *string
	}

	// CashFlow is an immutable ledger event. Balances are always derived
	// from the set of cash flows, never stored.
	CashFlow struct {
		ID             int64
		UserID         UserID
		Type           CashFlowType
		Amount         Money
		OccurredAt     time.Time
		CreatedAt      time.Time
		Description    string
		AccountID      int64
		CategoryID     *int64
		SubscriptionID *int64
	}

	Subscription struct {
		ID         int64
		UserID     UserID
		Merchant   string
		Amount     Money
		Frequency  Frequency
		StartDate  time.Time
		IsActive   bool
		NextPostAt time.Time
		Version    int64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	Goal struct {
		ID              int64
		UserID          UserID
		Name            string
		TargetAmount    Money
		SavedAmount     Money
		DueDate         *time.Time
		Status          GoalStatus
		LinkedAccountID *int64
		CreatedAt       time.Time
	}

	Transfer struct {
		ID            int64
		UserID        UserID
		FromAccountID int64
		ToAccountID   int64
		Amount        Money
		CreatedAt     time.Time
	}
)

func (t CashFlowType) Valid() bool {
	return t == Income || t == Expense
}

func (t AccountType) Valid() bool {
	return t == AccountCash || t == AccountGoal
}

// Signed returns the amount as it contributes to a balance.
func (c CashFlow) Signed() Money {
	if c.Type == Expense {
		return c.Amount.Neg()
	}
	return c.Amount
}

func (c CashFlow) Validate() error {
	if !c.Type.Valid() {
		return Invalidf("invalid cash flow type %q", c.Type)
	}
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if c.OccurredAt.IsZero() {
		return Invalidf("occurred at is required")
	}
	if len(c.Description) > 255 {
		return Invalidf("description too long (max 255 characters)")
	}
	return nil
}

func (s Subscription) Validate() error {
	if strings.TrimSpace(s.Merchant) == "" {
		return Invalidf("merchant is required")
	}
	if s.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if s.StartDate.IsZero() {
		return Invalidf("start date is required")
	}
	if strings.TrimSpace(string(s.Frequency)) == "" {
		return Invalidf("frequency is required")
	}
	return nil
}

// ProgressPercent is saved/target as a whole percentage, rounded half-up.
// A zero target yields 0.
func (g Goal) ProgressPercent() int {
	return int(ratioPercent(g.SavedAmount, g.TargetAmount, 0).IntPart())
}

// Reached reports whether the saved amount has met the target.
func (g Goal) Reached() bool {
	return g.SavedAmount.Cents >= g.TargetAmount.Cents
}

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameKey is the case-insensitive identity of a category or account name.
func NameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}
