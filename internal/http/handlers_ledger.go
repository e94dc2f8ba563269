package http

import (
	"net/http"

	"budgetledger/internal/core"
	"budgetledger/internal/services"
)

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	cash, err := s.svc.Ledger.ProvisionUser(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(cash))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.Ledger.ListAccounts(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountBalanceResponses(accounts))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	account, err := s.svc.Ledger.CreateAccount(r.Context(), userID(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Ledger.DeleteAccount(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	from, to, err := s.queryRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	flows, err := s.svc.Ledger.AccountTransactions(r.Context(), userID(r), id, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCashFlowResponses(flows))
}

func (s *Server) handleRecordIncome(w http.ResponseWriter, r *http.Request) {
	s.recordEntry(w, r, core.Income)
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	s.recordEntry(w, r, core.Expense)
}

func (s *Server) recordEntry(w http.ResponseWriter, r *http.Request, typ core.CashFlowType) {
	var req entryRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	in := services.EntryInput{
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		CategoryName: req.CategoryName,
	}
	if req.OccurredAt != nil {
		t, err := s.parseInstant("occurredAt", *req.OccurredAt)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		in.OccurredAt = t
	}

	record := s.svc.Ledger.RecordExpense
	if typ == core.Income {
		record = s.svc.Ledger.RecordIncome
	}
	flow, err := record(r.Context(), userID(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCashFlowResponse(flow))
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	flows, err := s.svc.Ledger.RecentTransactions(r.Context(), userID(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCashFlowResponses(flows))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard.Get(r.Context(), userID(r), r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(d))
}
