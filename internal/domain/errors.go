package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors returned by the order engine. Callers match them with errors.Is;
// call sites wrap them with context using %w.
var (
	ErrInvalidReference     = errors.New("unknown service or provider")
	ErrNotFound             = errors.New("not found")
	ErrInvalidQuantity      = errors.New("quantity must be >= 1")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrNoEligibleItems      = errors.New("no items are payable")
	ErrDocumentRequired     = errors.New("prescription document required")
	ErrSlotUnavailable      = errors.New("time slot unavailable")
	ErrValidation           = errors.New("validation failed")
	ErrConflictRetry        = errors.New("conflicting update, retry")
	ErrExternalService      = errors.New("external service unavailable")
)

// ValidationError lists the offending fields of a malformed request.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records another failing field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
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
