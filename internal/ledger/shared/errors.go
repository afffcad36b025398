package shared

import (
	"errors"
	"fmt"
)

// Sentinels for the ledger error taxonomy. Typed errors below report
// themselves as these via errors.Is so handlers can map them uniformly.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrValidation indicates malformed input rejected before any mutation.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrConflict indicates the request contradicts current state.
	ErrConflict = errors.New("ledger: conflict")
)

// ValidationError rejects malformed input: unknown enum values, unresolved
// account references, malformed amounts. Raised before storage is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ledger: %s", e.Reason)
	}
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError rejects a request that contradicts current state: unbalanced
// entries, double void, nonzero-balance deactivation, duplicate user account.
// No state change is applied.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return fmt.Sprintf("ledger: %s", e.Reason) }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NewConflictError builds a conflict error.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}
