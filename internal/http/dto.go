package http

import (
	"time"

	"budgetledger/internal/core"
)

// Request bodies. Amounts decode from a JSON number or decimal string.

type accountRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type entryRequest struct {
	AccountID    int64      `json:"accountId" validate:"omitempty,gt=0"`
	Amount       core.Money `json:"amount"`
	OccurredAt   *string    `json:"occurredAt"`
	Description  string     `json:"description" validate:"max=255"`
	CategoryID   *int64     `json:"categoryId" validate:"omitempty,gt=0"`
	CategoryName string     `json:"category" validate:"max=100"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type mergeRequest struct {
	SourceIDs    []int64 `json:"sourceIds" validate:"required,min=1,dive,gt=0"`
	TargetID     int64   `json:"targetId" validate:"required,gt=0"`
	MergeBudgets bool    `json:"mergeBudgets"`
}

type budgetRequest struct {
	Amount     core.Money `json:"amount"`
	CustomName *string    `json:"customName" validate:"omitempty,max=100"`
}

type subscriptionRequest struct {
	Merchant    string     `json:"merchant" validate:"required,max=100"`
	Amount      core.Money `json:"amount"`
	Frequency   string     `json:"frequency" validate:"required,max=20"`
	StartDate   string     `json:"startDate" validate:"required"`
	FirstPostAt *string    `json:"firstPostAt"`
	Active      *bool      `json:"active"`
}

type subscriptionPatchRequest struct {
	Merchant    *string     `json:"merchant" validate:"omitempty,min=1,max=100"`
	Amount      *core.Money `json:"amount"`
	Frequency   *string     `json:"frequency" validate:"omitempty,min=1,max=20"`
	StartDate   *string     `json:"startDate"`
	FirstPostAt *string     `json:"firstPostAt"`
	Active      *bool       `json:"active"`
}

type goalRequest struct {
	Name         string     `json:"name" validate:"required,max=100"`
	TargetAmount core.Money `json:"targetAmount"`
	DueDate      *string    `json:"dueDate"`
}

type goalPatchRequest struct {
	Name         *string     `json:"name" validate:"omitempty,min=1,max=100"`
	TargetAmount *core.Money `json:"targetAmount"`
	DueDate      *string     `json:"dueDate"`
}

type contributionRequest struct {
	FromAccountID int64      `json:"fromAccountId" validate:"required,gt=0"`
	Amount        core.Money `json:"amount"`
}

// Response bodies.

type accountResponse struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	Balance   *core.Money      `json:"balance,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

func newAccountResponse(a core.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Type: a.Type, CreatedAt: a.CreatedAt}
}

func newAccountBalanceResponses(in []core.AccountBalance) []accountResponse {
	out := make([]accountResponse, 0, len(in))
	for _, ab := range in {
		resp := newAccountResponse(ab.Account)
		balance := ab.Balance
		resp.Balance = &balance
		out = append(out, resp)
	}
	return out
}

type cashFlowResponse struct {
	ID             int64             `json:"id"`
	Type           core.CashFlowType `json:"type"`
	Amount         core.Money        `json:"amount"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Description    string            `json:"description"`
	AccountID      int64             `json:"accountId"`
	CategoryID     *int64            `json:"categoryId"`
	SubscriptionID *int64            `json:"subscriptionId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

func newCashFlowResponse(c core.CashFlow) cashFlowResponse {
	return cashFlowResponse{
		ID:             c.ID,
		Type:           c.Type,
		Amount:         c.Amount,
		OccurredAt:     c.OccurredAt,
		Description:    c.Description,
		AccountID:      c.AccountID,
		CategoryID:     c.CategoryID,
		SubscriptionID: c.SubscriptionID,
		CreatedAt:      c.CreatedAt,
	}
}

func newCashFlowResponses(in []core.CashFlow) []cashFlowResponse {
	out := make([]cashFlowResponse, 0, len(in))
	for _, c := range in {
		out = append(out, newCashFlowResponse(c))
	}
	return out
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsSystem bool   `json:"isSystem"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, IsSystem: c.IsSystem}
}

type categorySummaryResponse struct {
	Category categoryResponse   `json:"category"`
	Budget   core.BudgetSummary `json:"budget"`
	Count    int64              `json:"count"`
	Income   core.Money         `json:"income"`
}

type budgetResponse struct {
	ID         int64      `json:"id"`
	CategoryID int64      `json:"categoryId"`
	YearMonth  string     `json:"yearMonth"`
	Amount     core.Money `json:"amount"`
	CustomName *string    `json:"customName,omitempty"`
}

func newBudgetResponse(b core.CategoryBudget) budgetResponse {
	return budgetResponse{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		YearMonth:  b.YearMonth.String(),
		Amount:     b.Amount,
		CustomName: b.CustomName,
	}
}

type subscriptionResponse struct {
	ID                int64          `json:"id"`
	Merchant          string         `json:"merchant"`
	Amount            core.Money     `json:"amount"`
	Frequency         core.Frequency `json:"frequency"`
	MonthlyEquivalent core.Money     `json:"monthlyEquivalent"`
	StartDate         time.Time      `json:"startDate"`
	IsActive          bool           `json:"isActive"`
	NextPostAt        time.Time      `json:"nextPostAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func newSubscriptionResponse(s core.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                s.ID,
		Merchant:          s.Merchant,
		Amount:            s.Amount,
		Frequency:         s.Frequency,
		MonthlyEquivalent: s.Frequency.MonthlyEquivalent(s.Amount),
		StartDate:         s.StartDate,
		IsActive:          s.IsActive,
		NextPostAt:        s.NextPostAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

type goalResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	TargetAmount    core.Money      `json:"targetAmount"`
	SavedAmount     core.Money      `json:"savedAmount"`
	ProgressPercent int             `json:"progressPercent"`
	DueDate         *time.Time      `json:"dueDate,omitempty"`
	Status          core.GoalStatus `json:"status"`
	LinkedAccountID *int64          `json:"linkedAccountId"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func newGoalResponse(g core.Goal) goalResponse {
	return goalResponse{
		ID:              g.ID,
		Name:            g.Name,
		TargetAmount:    g.TargetAmount,
		SavedAmount:     g.SavedAmount,
		ProgressPercent: g.ProgressPercent(),
		DueDate:         g.DueDate,
		Status:          g.Status,
		LinkedAccountID: g.LinkedAccountID,
		CreatedAt:       g.CreatedAt,
	}
}

type contributionResponse struct {
	Goal          goalResponse `json:"goal"`
	TransferID    int64        `json:"transferId"`
	SourceBalance core.Money   `json:"sourceBalance"`
	GoalBalance   core.Money   `json:"goalBalance"`
}

type dashboardResponse struct {
	TotalBalance          core.Money         `json:"totalBalance"`
	Accounts              []accountResponse  `json:"accounts"`
	Month                 core.MonthOverview `json:"month"`
	ActiveSubscriptions   int                `json:"activeSubscriptions"`
	SubscriptionsPerMonth core.Money         `json:"subscriptionsPerMonth"`
	GoalsSaved            core.Money         `json:"goalsSaved"`
	GoalsProgressPercent  int                `json:"goalsProgressPercent"`
	RecentTransactions    []cashFlowResponse `json:"recentTransactions"`
}

func newDashboardResponse(d core.Dashboard) dashboardResponse {
	if d.Month.ByCategory == nil {
		d.Month.ByCategory = []core.CategoryAmount{}
	}
	return dashboardResponse{
		TotalBalance:          d.TotalBalance,
		Accounts:              newAccountBalanceResponses(d.Accounts),
		Month:                 d.Month,
		ActiveSubscriptions:   d.ActiveSubscriptions,
		SubscriptionsPerMonth: d.SubscriptionsPerMonth,
		GoalsSaved:            d.GoalsSaved,
		GoalsProgressPercent:  d.GoalsProgressPercent,
		RecentTransactions:    newCashFlowResponses(d.RecentTransactions),
	}
}

type mergeResponse struct {
	Reassigned int64 `json:"reassigned"`
}

type monthlyTotalResponse struct {
	MonthlyTotal core.Money `json:"monthlyTotal"`
}

type categoryTotalResponse struct {
	CategoryID *int64     `json:"categoryId"`
	Name       string     `json:"name"`
	Amount     core.Money `json:"amount"`
}

type reportResponse struct {
	From              time.Time               `json:"from"`
	To                time.Time               `json:"to"`
	TotalIncome       core.Money              `json:"totalIncome"`
	TotalExpense      core.Money              `json:"totalExpense"`
	Balance           core.Money              `json:"balance"`
	ExpenseByCategory []categoryTotalResponse `json:"expenseByCategory"`
	Transfer          core.Money              `json:"transfer"`
}

func newReportResponse(r core.Report) reportResponse {
	out := reportResponse{
		From:              r.From,
		To:                r.To,
		TotalIncome:       r.TotalIncome,
		TotalExpense:      r.TotalExpense,
		Balance:           r.Balance,
		ExpenseByCategory: make([]categoryTotalResponse, 0, len(r.ExpenseByCategory)),
		Transfer:          r.TransferTotal,
	}
	for _, ca := range r.ExpenseByCategory {
		out.ExpenseByCategory = append(out.ExpenseByCategory, categoryTotalResponse{
			CategoryID: ca.CategoryID,
			Name:       ca.Name,
			Amount:     ca.Amount,
		})
	}
	return out
}
