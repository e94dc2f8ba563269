package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"budgetledger/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Categories.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, newCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Create(r.Context(), userID(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryResponse(c))
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req categoryRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.Categories.Rename(r.Context(), userID(r), id, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Categories.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMergeCategories(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	moved, err := s.svc.Categories.Merge(r.Context(), userID(r), req.SourceIDs, req.TargetID, req.MergeBudgets)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeResponse{Reassigned: moved})
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sum, err := s.svc.Categories.Summary(r.Context(), userID(r), id, r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categorySummaryResponse{
		Category: newCategoryResponse(sum.Category),
		Budget:   sum.BudgetSummary,
		Count:    sum.Count,
		Income:   sum.Income,
	})
}

func (s *Server) handleCategoryRecords(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	typ := core.CashFlowType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))))
	flows, err := s.svc.Categories.Records(r.Context(), userID(r), id, r.URL.Query().Get("month"), typ)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCashFlowResponses(flows))
}

func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sum, err := s.svc.Budgets.Summary(r.Context(), userID(r), id, chi.URLParam(r, "month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req budgetRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	b, err := s.svc.Budgets.Set(r.Context(), userID(r), id, chi.URLParam(r, "month"), req.Amount, req.CustomName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	deleted, err := s.svc.Budgets.Delete(r.Context(), userID(r), id, chi.URLParam(r, "month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, http.StatusNotFound, "no budget for that month", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthBudgets(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.Budgets.Month(r.Context(), userID(r), r.URL.Query().Get("month"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []core.BudgetSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}
