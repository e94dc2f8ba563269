package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"budgetledger/internal/core"
)

const maxBodyBytes = 1 << 20

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates its struct tags.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return core.Invalidf("request body is required")
		}
		return core.Invalidf("malformed JSON: %v", err)
	}
	return s.validate.Struct(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseInstant accepts RFC 3339 or a bare YYYY-MM-DD, which means midnight
// in the home zone.
func (s *Server) parseInstant(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(s.loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, s.loc); err == nil {
		return t, nil
	}
	return time.Time{}, core.Invalidf("invalid %s %q, expected YYYY-MM-DD or RFC 3339", field, value)
}

func (s *Server) parseOptionalInstant(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := s.parseInstant(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryRange reads optional from/to bounds. A date-only to covers the
// whole day.
func (s *Server) queryRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if from, err = s.parseInstant("from", v); err != nil {
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = s.parseInstant("to", v); err != nil {
			return
		}
		if len(strings.TrimSpace(v)) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = core.Invalidf("to must not be before from")
	}
	return
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalidf("invalid %s %q", name, v)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.Invalidf("invalid %s %q", name, v)
	}
	return b, nil
}
