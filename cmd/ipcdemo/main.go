// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command ipcdemo runs and talks to the loopback message broker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/commands"
	"github.com/bureau-foundation/ipcdemo/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that report their own outcome (code --verify) return
		// an ExitError with the status to use.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		if hint := cli.HintOf(err); hint != "" {
			err = fmt.Errorf("%w\n%s", err, hint)
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:], cli.NewCommandLogger(slog.LevelInfo))
}
