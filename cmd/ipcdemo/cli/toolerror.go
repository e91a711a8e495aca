// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies command errors so callers and scripts can
// tell bad input from a temporary failure from a bug.
type ErrorCategory string

const (
	// CategoryValidation indicates invalid input: unknown flags, wrong
	// argument count, unparseable values, unreadable config. Fix the
	// input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryTransient indicates a failure that may pass on retry:
	// the broker is not listening, a connection was reset, the circuit
	// breaker tripped.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates an unexpected failure: bugs, local I/O
	// errors, corrupt files the program wrote itself.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error returned by commands. It wraps an
// inner error, so errors.Is and errors.As see the full chain. Use the
// category constructors rather than building one directly.
type ToolError struct {
	// Category classifies the error for programmatic handling.
	Category ErrorCategory

	// Err is the underlying error with the human-readable message.
	Err error

	// Hint is an optional next step printed after the error.
	Hint string
}

// Error returns the underlying error message without the category.
func (e *ToolError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Err }

// WithHint attaches a next-step suggestion and returns e.
func (e *ToolError) WithHint(hint string) *ToolError {
	e.Hint = hint
	return e
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the first ToolError in err's
// chain, or CategoryInternal when there is none.
func CategoryOf(err error) ErrorCategory {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	return CategoryInternal
}

// HintOf returns the hint of the first ToolError in err's chain.
func HintOf(err error) string {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Hint
	}
	return ""
}
