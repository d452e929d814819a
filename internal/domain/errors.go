package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the four failure kinds. Typed errors below match them via errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrEmbedding   = errors.New("embedding failed")
	ErrPersistence = errors.New("persistence failed")

	// ErrZeroNorm is wrapped by EmbeddingError when a vector cannot be normalized.
	ErrZeroNorm = errors.New("zero-norm vector")
)

// ErrNothingIngested is returned by queries and lookups before any document was ingested
// or after a reset.
var ErrNothingIngested = &NotFoundError{Resource: "document"}

// ValidationError reports malformed input to the retrieval core.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError.
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NotFoundError reports a missing chunk or an empty session.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		if e.Resource == "document" {
			return "no document ingested"
		}
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	t, ok := target.(*NotFoundError)
	return ok && t.Resource == e.Resource && t.ID == e.ID
}

// EmbeddingError wraps a model failure or a degenerate vector.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding %s: %v", e.Op, e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}

// PersistenceError wraps save/load I/O and format failures.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}
func (e *PersistenceError) Unwrap() error { return e.Err }
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
