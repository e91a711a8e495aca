// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the ipcdemo command tree: the broker
// (serve), the terminal subscriber (watch), the one-shot and stress
// clients (send, stress), and the code and secret utilities.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/version"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

type rootParams struct {
	Version bool `flag:"version" desc:"print version information and exit"`
}

// Root builds and returns the complete ipcdemo command tree.
func Root() *cli.Command {
	var params rootParams
	root := &cli.Command{
		Name: "ipcdemo",
		Description: `ipcdemo: a loopback message broker with rotating secure codes.

A broker listens on 127.0.0.1 and accepts one JSON message per TCP
connection. Every message carries a short code derived from a shared
secret and the current time; subscribers verify it and route rejected
messages to their own tab.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ipcdemo", &params)
		},
		Subcommands: []*cli.Command{
			serveCommand(),
			watchCommand(),
			sendCommand(),
			stressCommand(),
			codeCommand(),
			secretCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(stdout, "ipcdemo %s\n", version.Full())
					return nil
				},
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if params.Version {
				fmt.Fprintf(stdout, "ipcdemo %s\n", version.Full())
				return nil
			}
			if len(args) > 0 {
				return cli.Validation("unknown command %q", args[0]).
					WithHint("Run 'ipcdemo --help' for usage.")
			}
			return cli.Validation("command required").
				WithHint("Run 'ipcdemo --help' for usage.")
		},
		Examples: []cli.Example{
			{
				Description: "Create a shared secret both ends can read",
				Command:     "head -c 32 /dev/urandom | base64 > ~/.config/ipcdemo/secret",
			},
			{
				Description: "Run the broker with the terminal subscriber",
				Command:     "ipcdemo watch --secret-file ~/.config/ipcdemo/secret",
			},
			{
				Description: "Send one message from another terminal",
				Command:     "ipcdemo send --secret-file ~/.config/ipcdemo/secret 'hello there'",
			},
			{
				Description: "Show the code that is valid right now",
				Command:     "ipcdemo code --secret-file ~/.config/ipcdemo/secret",
			},
		},
	}
	return root
}
