// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies the errors a one-shot TCP exchange can
// end with.
package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is an ordinary end of a
// connection: EOF, a closed socket, a broken pipe, or a reset. A peer
// that writes its line and closes immediately can produce any of them.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRefused reports whether err is a refused connection, meaning
// nothing listens on the port.
func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
