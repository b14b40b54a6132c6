// Package resilience provides circuit breaking, bounded retry, and fallback
// strategies for outbound calls, composed through a process-wide Registry.
package resilience

import (
	"errors"
	"fmt"
)

// TransientError marks a failure as retryable (network timeout, 5xx,
// temporary unavailability). Wrap the cause so errors.Is/As still work.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// PermanentError marks a failure as not retryable (validation failure, 4xx,
// malformed input). Retries short-circuit immediately on these.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as not retryable. Returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// CircuitOpenError is returned when a breaker blocks a call and no fallback
// absorbed it.
type CircuitOpenError struct {
	Circuit string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Circuit)
}

// RetryExhaustedError wraps the last underlying failure after all attempts
// were consumed.
type RetryExhaustedError struct {
	Policy   string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry policy %q exhausted after %d attempts: %v", e.Policy, e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// NoCachedValueError is returned by a cache fallback with nothing to serve.
type NoCachedValueError struct {
	Key string
}

// Error implements the error interface.
func (e *NoCachedValueError) Error() string {
	return fmt.Sprintf("no cached fallback value for key %q", e.Key)
}

// NotRegisteredError is returned when a breaker or retry policy name is not
// known to the registry.
type NotRegisteredError struct {
	Kind string // "circuit breaker" or "retry policy"
	Name string
}

// Error implements the error interface.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("%s %q is not registered", e.Kind, e.Name)
}

// IsRetryable reports whether err should consume a retry attempt.
// Permanent errors and open-circuit rejections never retry; transient errors
// always do. Unclassified errors default to retryable so plain network
// failures from callers that don't wrap are still covered.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}

	var open *CircuitOpenError
	if errors.As(err, &open) {
		return false
	}

	return true
}
