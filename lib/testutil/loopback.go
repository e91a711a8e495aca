// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"testing"
)

// FreePort reserves an ephemeral loopback port and releases it, for
// tests that must hand a broker a concrete port number. Another process
// could claim the port in between; tests tolerate that as a flake.
func FreePort(t testing.TB) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving loopback port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}
