package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"budgetledger/internal/core"
	applog "budgetledger/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

var errNoSubject = errors.New("token carries no user id")

// authenticate resolves the bearer token into a UserID. The id comes from
// the user_id claim, or from sub when user_id is absent.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token", nil)
			return
		}

		userID, err := parseUserToken(strings.TrimSpace(token), []byte(s.opts.JWTSecret))
		if err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected bearer token", "error", err)
			writeError(w, r, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		logger := applog.FromContext(r.Context()).With(applog.FieldUserID, int64(userID))
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = applog.NewContext(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseUserToken(raw string, secret []byte) (core.UserID, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return 0, err
	}

	if v, ok := claims["user_id"]; ok {
		return claimUserID(v)
	}
	if v, ok := claims["sub"]; ok {
		return claimUserID(v)
	}
	return 0, errNoSubject
}

func claimUserID(v any) (core.UserID, error) {
	var id int64
	switch val := v.(type) {
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("user id %v is not an integer", val)
		}
		id = int64(val)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("user id %q is not an integer", val)
		}
		id = n
	default:
		return 0, fmt.Errorf("unsupported user id claim type %T", v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("user id %d must be positive", id)
	}
	return core.UserID(id), nil
}

// userID returns the caller resolved by authenticate.
func userID(r *http.Request) core.UserID {
	id, _ := r.Context().Value(userIDKey).(core.UserID)
	return id
}
