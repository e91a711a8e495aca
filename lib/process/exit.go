// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
)

// Exit terminates the process. Tests replace it.
var Exit = os.Exit

// Stderr receives Fatal's report. Tests replace it.
var Stderr io.Writer = os.Stderr

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run(), where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(Stderr, "error: %v\n", err)
	Exit(1)
}

// ExitAfter waits grace on clk and then exits with code. It blocks
// until the exit; a zero grace exits at once. Callers run it on its
// own goroutine when work should continue during the grace period.
func ExitAfter(clk clock.Clock, grace time.Duration, code int) {
	if grace > 0 {
		<-clk.After(grace)
	}
	Exit(code)
}
