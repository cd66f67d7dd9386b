package places

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no record matches the requested id
var ErrNotFound = errors.New("place not found")

// ValidationError reports a rejected input parameter
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExternalSourceError wraps a failure of the upstream places source
type ExternalSourceError struct {
	Service    string
	StatusCode int
	Cause      error
}

func (e *ExternalSourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Service, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Cause)
}

func (e *ExternalSourceError) Unwrap() error {
	return e.Cause
}

// StoreError wraps a failure of the place store
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
