package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the machine-readable class of an error surfaced to API callers.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindModelUnavailable Kind = "model_unavailable"
	KindStoreUnavailable Kind = "store_unavailable"
	KindNotFound         Kind = "not_found"
	KindInternal         Kind = "internal_error"
)

var (
	// ErrValidation signals user-correctable input problems.
	ErrValidation = errors.New("validation failed")
	// ErrModelUnavailable signals that the classifier could not be loaded or used.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrStoreUnavailable signals that the submission store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// Err returns e as an error, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FieldError is a shorthand for a single-field validation error.
func FieldError(field, msg string) error {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}
