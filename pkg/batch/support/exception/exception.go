// Package exception defines the error types shared by the batch engine.
// Errors carry the module they originate from together with retryable and
// skippable flags, which the retry and skip policies classify against.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// BatchError is the engine's error type. It wraps a cause and records whether
// the failure may be retried (transient) or skipped (data-specific).
type BatchError struct {
	// Module names the component the error originated from
	// (e.g. "reader", "processor", "writer", "repository").
	Module string
	// Message is a concise description of the failure.
	Message string
	// Cause is the wrapped original error, if any.
	Cause error

	retryable  bool
	skippable  bool
	stackTrace string
}

// NewBatchError creates a BatchError. skippable marks data-specific failures
// the skip policy may tolerate; retryable marks transient failures the retry
// policy may re-attempt.
func NewBatchError(module, message string, cause error, skippable, retryable bool) *BatchError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &BatchError{
		Module:     module,
		Message:    message,
		Cause:      cause,
		retryable:  retryable,
		skippable:  skippable,
		stackTrace: string(buf[:n]),
	}
}

// NewSkippableError creates a BatchError flagged as skippable only.
func NewSkippableError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, cause, true, false)
}

// NewRetryableError creates a BatchError flagged as retryable only.
func NewRetryableError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, cause, false, true)
}

// NewFatalError creates a BatchError that is neither retryable nor skippable.
func NewFatalError(module, message string, cause error) *BatchError {
	return NewBatchError(module, message, cause, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *BatchError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether this error is transient.
func (e *BatchError) IsRetryable() bool {
	return e.retryable
}

// IsSkippable reports whether this error is data-specific and tolerable.
func (e *BatchError) IsSkippable() bool {
	return e.skippable
}

// StackTrace returns the stack captured at construction time.
func (e *BatchError) StackTrace() string {
	return e.stackTrace
}

// IsRetryable reports whether err (or any error in its chain) is a BatchError
// flagged retryable.
func IsRetryable(err error) bool {
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	return false
}

// IsSkippable reports whether err (or any error in its chain) is a BatchError
// flagged skippable.
func IsSkippable(err error) bool {
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsSkippable()
	}
	return false
}

// Message extracts a concise message from an error. For a BatchError the
// Message field is returned; otherwise the full Error() string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// MatchesType reports whether err, or any error in its chain, matches the
// given name by message substring. Configuration files reference error
// classes by these names.
func MatchesType(err error, name string) bool {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), name) {
			return true
		}
	}
	return false
}
