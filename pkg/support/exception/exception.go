// Package exception provides custom error types and error handling utilities for the MIBEL panel pipeline.
// It standardizes errors that occur during ingestion and assembly, allowing them to be categorized
// based on retry and skip policies.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Sentinel errors for the pipeline error taxonomy.
var (
	// ErrInvalidRange indicates a date range whose end precedes its start.
	ErrInvalidRange = errors.New("invalid date range: end date precedes start date")
	// ErrResidualDuplicate indicates that duplicate keys survived conflict resolution.
	// This signals a resolver defect and is fatal to the affected batch.
	ErrResidualDuplicate = errors.New("residual duplicate keys after conflict resolution")
	// ErrJoinKeyMismatch indicates a timestamp whose representation is not the canonical
	// UTC hour form, which would silently break an exact-key join.
	ErrJoinKeyMismatch = errors.New("join key is not in canonical UTC hour representation")
)

// PipelineError is a custom error type that occurs during pipeline processing.
// It holds the module where the error occurred, a message, the wrapped original error,
// and flags indicating whether it is retryable or skippable.
type PipelineError struct {
	// Module indicates the module where the error occurred (e.g., "transform", "store", "panel").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewPipelineError creates a new PipelineError instance.
//
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// isSkippable: Whether this error is skippable.
// isRetryable: Whether this error is retryable.
func NewPipelineError(module, message string, originalErr error, isSkippable, isRetryable bool) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewPipelineErrorf creates a new PipelineError instance using a format string.
// The resulting error is neither retryable nor skippable; callers that need
// those flags should use NewPipelineError.
func NewPipelineErrorf(module, format string, a ...interface{}) *PipelineError {
	return NewPipelineError(module, fmt.Sprintf(format, a...), nil, false, false)
}

// NewInvalidRangeError creates a PipelineError wrapping ErrInvalidRange
// with the offending range rendered into the message.
func NewInvalidRangeError(module string, start, end string) *PipelineError {
	return NewPipelineError(module, fmt.Sprintf("end date %s precedes start date %s", end, start), ErrInvalidRange, false, false)
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of the original error.
func (e *PipelineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *PipelineError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *PipelineError) IsSkippable() bool {
	return e.isSkippable
}

// IsPipelineError determines if the given error is of type PipelineError.
func IsPipelineError(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	return errors.As(err, &pe)
}

// IsTemporary determines if an error is temporary (e.g., network error, temporary DB connection issue).
// If it's a PipelineError, its IsRetryable flag takes precedence.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

// IsFatal determines if an error is fatal (cannot be retried or skipped).
// If it's a PipelineError, its flags take precedence.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResidualDuplicate) || errors.Is(err, ErrJoinKeyMismatch) {
		return true
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return !pe.IsRetryable() && !pe.IsSkippable()
	}
	return false
}

// ExtractErrorMessage extracts the error message string from an error.
// For PipelineError, it returns the cleaner Message field.
// Otherwise, it returns the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
