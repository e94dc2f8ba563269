package http

import (
	"context"
	"net/http"

	"budgetledger/internal/core"
	"budgetledger/internal/services"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	subs, err := s.svc.Subscriptions.List(r.Context(), userID(r), activeOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, newSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubscriptionsMonthlyTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.svc.Subscriptions.MonthlyEquivalent(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, monthlyTotalResponse{MonthlyTotal: total})
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	start, err := s.parseInstant("startDate", req.StartDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	firstPost, err := s.parseOptionalInstant("firstPostAt", req.FirstPostAt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sub, err := s.svc.Subscriptions.Create(r.Context(), userID(r), services.SubscriptionInput{
		Merchant:    req.Merchant,
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		StartDate:   start,
		FirstPostAt: firstPost,
		Active:      req.Active,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSubscriptionResponse(sub))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	s.withSubscription(w, r, s.svc.Subscriptions.Get)
}

func (s *Server) handlePauseSubscription(w http.ResponseWriter, r *http.Request) {
	s.withSubscription(w, r, s.svc.Subscriptions.Pause)
}

func (s *Server) handleResumeSubscription(w http.ResponseWriter, r *http.Request) {
	s.withSubscription(w, r, s.svc.Subscriptions.Resume)
}

func (s *Server) withSubscription(w http.ResponseWriter, r *http.Request, op func(context.Context, core.UserID, int64) (core.Subscription, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sub, err := op(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req subscriptionPatchRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	patch := services.SubscriptionPatch{
		Merchant:  req.Merchant,
		Amount:    req.Amount,
		Frequency: req.Frequency,
		Active:    req.Active,
	}
	if patch.StartDate, err = s.parseOptionalInstant("startDate", req.StartDate); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if patch.FirstPostAt, err = s.parseOptionalInstant("firstPostAt", req.FirstPostAt); err != nil {
		writeServiceError(w, r, err)
		return
	}

	sub, err := s.svc.Subscriptions.Update(r.Context(), userID(r), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Subscriptions.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
