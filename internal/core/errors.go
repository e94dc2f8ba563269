package core

import (
	"errors"
	"fmt"
)

// Error classes. Callers match with errors.Is; the HTTP boundary maps them
// to 422, 404 and 409.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrEmptyName         = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrConflict)
	ErrNoCashAccount     = fmt.Errorf("%w: user has no cash account", ErrConflict)
	ErrSystemCategory    = fmt.Errorf("%w: system categories cannot be changed", ErrConflict)
	ErrDuplicateName     = fmt.Errorf("%w: name already exists", ErrConflict)
	ErrStaleCursor       = fmt.Errorf("%w: subscription cursor was updated concurrently", ErrConflict)
)

// Invalidf builds a validation error with a formatted detail.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds a not-found error naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a state conflict error.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
