// Package shared provides domain types and errors used by every bounded context.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain error taxonomy. Validation, not-found and
// state-conflict failures are synchronous and fail-fast; callers map them to
// transport-level responses at the boundary.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrStateConflict = errors.New("state conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")
)

// ValidationError wraps a formatted message into a validation error.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundError wraps a formatted message into a not-found error.
func NotFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// StateConflictError wraps a formatted message into a state-conflict error.
func StateConflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStateConflict checks if the error is a state-conflict error.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsConflict checks if the error is a conflict or already-exists error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}
