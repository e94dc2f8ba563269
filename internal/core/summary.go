package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetSummary compares a month's spend in one category against its budget.
// Remaining goes negative when the budget is exceeded.
type BudgetSummary struct {
	CategoryID int64           `json:"categoryId"`
	YearMonth  string          `json:"yearMonth"`
	CustomName *string         `json:"customName,omitempty"`
	Budget     Money           `json:"budget"`
	Spent      Money           `json:"spent"`
	Remaining  Money           `json:"remaining"`
	Percent    decimal.Decimal `json:"expenseVsBudgetPct"`
}

// NewBudgetSummary derives remaining and percentage from budget and spend.
func NewBudgetSummary(categoryID int64, ym YearMonth, budget, spent Money) BudgetSummary {
	return BudgetSummary{
		CategoryID: categoryID,
		YearMonth:  ym.String(),
		Budget:     budget,
		Spent:      spent,
		Remaining:  budget.Sub(spent),
		Percent:    Percent(spent, budget),
	}
}

type CategorySummary struct {
	Category Category
	BudgetSummary
	Count  int64
	Income Money
}

type AccountBalance struct {
	Account Account
	Balance Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	CategoryID *int64          `json:"categoryId"`
	Name       string          `json:"name"`
	Amount     Money           `json:"amount"`
	Budget     Money           `json:"budget"`
	Percent    decimal.Decimal `json:"expenseVsBudgetPct"`
}

// MonthOverview is a compact summary for a specific month.
type MonthOverview struct {
	YearMonth  string           `json:"yearMonth"`
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	Net        Money            `json:"net"`
	SavingRate decimal.Decimal  `json:"savingsRate"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// Dashboard is read from a single snapshot so its figures agree.
type Dashboard struct {
	TotalBalance          Money
	Accounts              []AccountBalance
	Month                 MonthOverview
	ActiveSubscriptions   int
	SubscriptionsPerMonth Money
	GoalsSaved            Money
	GoalsProgressPercent  int
	RecentTransactions    []CashFlow
}

// ContributionResult reports the state right after a goal contribution.
type ContributionResult struct {
	Goal          Goal
	Transfer      Transfer
	SourceBalance Money
	GoalBalance   Money
}

// Report totals the ledger between two instants.
type Report struct {
	From              time.Time
	To                time.Time
	TotalIncome       Money
	TotalExpense      Money
	Balance           Money
	ExpenseByCategory []CategoryAmount
	TransferTotal     Money
}

// TrendPeriod selects the buckets of a spending trend.
type TrendPeriod string

const (
	TrendWeek  TrendPeriod = "WEEK"
	TrendMonth TrendPeriod = "MONTH"
	TrendYear  TrendPeriod = "YEAR"
)

// ParseTrendPeriod is case-insensitive. Anything unknown is a week.
func ParseTrendPeriod(s string) TrendPeriod {
	switch p := TrendPeriod(strings.ToUpper(strings.TrimSpace(s))); p {
	case TrendMonth, TrendYear:
		return p
	default:
		return TrendWeek
	}
}

// TrendPoint is the expense total of one day or month.
type TrendPoint struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"date"`
	Amount  Money     `json:"amount"`
	Current bool      `json:"isCurrent"`
}

// SpendingTrend holds the last 7 days (WEEK), the days of this month so far
// (MONTH) or the months of this year so far (YEAR).
type SpendingTrend struct {
	Period TrendPeriod  `json:"period"`
	Points []TrendPoint `json:"points"`
}
