package http

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	applog "budgetledger/internal/log"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	report, err := s.svc.Reports.Generate(r.Context(), userID(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(report))
}

func (s *Server) handleSpendingTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := s.svc.Reports.SpendingTrend(r.Context(), userID(r), r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

// handleExportTransactions streams the events in range as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryRange(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	lines, err := s.svc.Reports.Transactions(r.Context(), userID(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Type", "Description", "Category", "Amount", "Date"})
	for _, l := range lines {
		_ = cw.Write([]string{
			strconv.FormatInt(l.ID, 10),
			string(l.Type),
			l.Description,
			l.CategoryName,
			l.Amount.String(),
			l.OccurredAt.In(s.loc).Format(time.RFC3339),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "CSV export interrupted", "error", err)
	}
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	ab, err := s.svc.Ledger.Balance(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := newAccountResponse(ab.Account)
	resp.Balance = &ab.Balance
	writeJSON(w, http.StatusOK, resp)
}
