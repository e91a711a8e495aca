// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
)

type codeParams struct {
	commonParams
	Verify string `flag:"verify" desc:"check this code instead of printing the current one; exits 1 if it is not accepted"`
}

func codeCommand() *cli.Command {
	var params codeParams
	return &cli.Command{
		Name:    "code",
		Summary: "Print or check the current secure code",
		Description: `Print the secure code for the current window and how long it stays
valid. Both ends derive it from the shared secret and the clock, so two
machines with the same secret print the same code.

With --verify, check a code the way a subscriber would (the code6
scheme also accepts the previous window's code).`,
		Usage: "ipcdemo code [flags]",
		Examples: []cli.Example{
			{
				Description: "Show the current code",
				Command:     "ipcdemo code --secret-file secret",
			},
			{
				Description: "Check a code read off another machine",
				Command:     "ipcdemo code --secret-file secret --verify 042917",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("code", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runCode(&params)
		},
	}
}

func runCode(params *codeParams) error {
	session, err := params.open("code", nil)
	if err != nil {
		return err
	}
	defer session.Close()

	if params.Verify != "" {
		if !session.generator.Verify(params.Verify) {
			fmt.Fprintf(stdout, "code %s rejected (%s)\n", params.Verify, session.scheme.Name)
			return &cli.ExitError{Code: 1}
		}
		fmt.Fprintf(stdout, "code %s accepted (%s)\n", params.Verify, session.scheme.Name)
		return nil
	}

	code, err := session.generator.Code()
	if err != nil {
		return cli.Internal("generating code: %w", err)
	}
	fmt.Fprintf(stdout, "secure code %s for the next %s\n", code, describeRemaining(session.generator.Remaining()))
	return nil
}

// describeRemaining renders a window remainder the way a person reads a
// clock: whole minutes, or seconds in the last minute.
func describeRemaining(remaining time.Duration) string {
	if remaining < time.Minute {
		seconds := int(remaining.Round(time.Second) / time.Second)
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := int(remaining / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
