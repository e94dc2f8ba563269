package http

import (
	"net/http"

	"budgetledger/internal/services"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.svc.Goals.List(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	due, err := s.parseOptionalInstant("dueDate", req.DueDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	goal, err := s.svc.Goals.Create(r.Context(), userID(r), services.GoalInput{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		DueDate:      due,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalResponse(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	goal, err := s.svc.Goals.Get(r.Context(), userID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req goalPatchRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	patch := services.GoalPatch{Name: req.Name, TargetAmount: req.TargetAmount}
	if patch.DueDate, err = s.parseOptionalInstant("dueDate", req.DueDate); err != nil {
		writeServiceError(w, r, err)
		return
	}

	goal, err := s.svc.Goals.Update(r.Context(), userID(r), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalResponse(goal))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Goals.Delete(r.Context(), userID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req contributionRequest
	if err := s.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.Goals.Contribute(r.Context(), userID(r), req.FromAccountID, id, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contributionResponse{
		Goal:          newGoalResponse(res.Goal),
		TransferID:    res.Transfer.ID,
		SourceBalance: res.SourceBalance,
		GoalBalance:   res.GoalBalance,
	})
}

func (s *Server) handleGoalContributions(w http.ResponseWriter, r *http.Request) {
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
	flows, err := s.svc.Goals.Contributions(r.Context(), userID(r), id, from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCashFlowResponses(flows))
}
