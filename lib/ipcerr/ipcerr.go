// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipcerr classifies failures on the broker's wire path so that
// subscribers and the sender's circuit breaker can act on the class
// without parsing error text.
package ipcerr

import (
	"errors"
	"fmt"
)

// Class identifies the layer a failure came from.
type Class string

const (
	// ClassTransport covers socket-level failures: connection refused,
	// reset, accept errors, a peer that disconnects without sending.
	ClassTransport Class = "transport"

	// ClassIO covers stream read/write failures after the connection is
	// established, including read timeouts.
	ClassIO Class = "io"

	// ClassProtocol covers a line that arrived but is not a valid
	// message: malformed JSON, not an object, missing Type, oversized.
	ClassProtocol Class = "protocol"

	// ClassSecurity marks a message whose code failed verification. The
	// broker never produces it; subscribers use it when they reject a
	// message.
	ClassSecurity Class = "security"
)

// Error is a classified failure. Op names the operation that failed
// ("accept", "read", "decode", "dial", "write", "verify").
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Class, e.Op, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Transport wraps err as a transport failure.
func Transport(op string, err error) *Error {
	return &Error{Class: ClassTransport, Op: op, Err: err}
}

// IO wraps err as a stream failure.
func IO(op string, err error) *Error {
	return &Error{Class: ClassIO, Op: op, Err: err}
}

// Protocol builds a protocol failure from a format string.
func Protocol(op string, format string, args ...any) *Error {
	return &Error{Class: ClassProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

// Security builds a verification failure from a format string.
func Security(op string, format string, args ...any) *Error {
	return &Error{Class: ClassSecurity, Op: op, Err: fmt.Errorf(format, args...)}
}

// ClassOf returns the class of the first *Error in err's chain, or ""
// when err is unclassified.
func ClassOf(err error) Class {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Class
	}
	return ""
}

// Is reports whether err carries the given class.
func Is(err error, class Class) bool {
	return ClassOf(err) == class
}
