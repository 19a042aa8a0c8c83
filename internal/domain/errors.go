// Package domain provides shared domain-level sentinel errors and paging.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the request conflicts with the current state of the
// resource (optimistic locking, a second active sprint, ...).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates invalid input. Wrap it with the offending detail:
//
//	fmt.Errorf("%w: title is required", domain.ErrValidation)
var ErrValidation = errors.New("validation failed")

// ErrAlreadyExists indicates a uniqueness constraint was violated.
var ErrAlreadyExists = errors.New("already exists")

// ErrUnauthorized indicates missing, invalid or expired credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden indicates the caller is authenticated but not allowed to act.
var ErrForbidden = errors.New("forbidden")

// ValidationError carries a client-facing message and matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a *ValidationError with a formatted message.
func Invalid(format string, args ...any) error {
	if len(args) == 0 {
		return &ValidationError{Msg: format}
	}
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
