package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"budgetledger/internal/core"
	applog "budgetledger/internal/log"
	"budgetledger/internal/middleware/trace"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		Details:   details,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// writeServiceError maps the core error classes to status codes. Anything
// unclassified is a 500 whose cause stays in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeError(w, r, http.StatusUnprocessableEntity, "validation failed", validationDetails(verrs))
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, core.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error(), nil)
	default:
		applog.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
		writeError(w, r, http.StatusInternalServerError, "internal error", nil)
	}
}

func validationDetails(verrs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on '%s'", fe.Tag())
		if fe.Param() != "" {
			msg += " " + fe.Param()
		}
		details[strings.TrimSpace(fe.Field())] = msg
	}
	return details
}
