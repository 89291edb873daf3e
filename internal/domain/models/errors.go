package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited marks a throttled upstream call; the resolver falls through.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrNoData marks an empty or unknown result. Not retried.
	ErrNoData = errors.New("no data")
	// ErrUnsupported marks an operation a provider does not offer.
	ErrUnsupported = errors.New("operation not supported")
	// ErrAllProvidersFailed is returned when a chain is exhausted and nothing is cached.
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrJobRunning rejects a screener start for a universe already RUNNING.
	ErrJobRunning = errors.New("job already running")
	// ErrValidation is wrapped by ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by stores for absent rows.
	ErrNotFound = errors.New("not found")
)

// ProviderError is a failed upstream call.
type ProviderError struct {
	Provider string
	Op       string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err for provider/op.
func NewProviderError(provider, op string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Status: status, Err: err}
}

// ChainError collects the per-provider failures of an exhausted chain.
type ChainError struct {
	Op     string
	Key    string
	Errors []error
}

func (e *ChainError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s %s: %v: [%s]", e.Op, e.Key, ErrAllProvidersFailed, strings.Join(parts, "; "))
}

// Unwrap exposes the sentinel plus every provider error to errors.Is/As.
func (e *ChainError) Unwrap() []error {
	return append([]error{ErrAllProvidersFailed}, e.Errors...)
}

// AllNoData reports whether every provider answered with ErrNoData.
func (e *ChainError) AllNoData() bool {
	if len(e.Errors) == 0 {
		return false
	}
	for _, err := range e.Errors {
		if !errors.Is(err, ErrNoData) {
			return false
		}
	}
	return true
}

// FieldViolation is one rejected input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejects caller input before any I/O.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
