// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/sealed"
	"github.com/bureau-foundation/ipcdemo/lib/secret"
)

func secretCommand() *cli.Command {
	return &cli.Command{
		Name:    "secret",
		Summary: "Manage sealed shared-secret files",
		Description: `Store the shared secret encrypted at rest with age.

Generate an identity once per machine, seal the secret to every
machine's public key, and point --secret-identity at the identity file.
Sealed and plaintext secret files are told apart by their content.`,
		Subcommands: []*cli.Command{
			secretKeygenCommand(),
			secretSealCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Create an identity and seal a secret to it",
				Command:     "ipcdemo secret keygen -o ~/.config/ipcdemo/identity && ipcdemo secret seal -r age1... -o secret.age plain-secret",
			},
			{
				Description: "Use the sealed secret",
				Command:     "ipcdemo watch --secret-file secret.age --secret-identity ~/.config/ipcdemo/identity",
			},
		},
	}
}

type secretKeygenParams struct {
	Output string `flag:"output,o" desc:"identity file to create (required)"`
	Force  bool   `flag:"force"    desc:"replace an existing identity file"`
}

func secretKeygenCommand() *cli.Command {
	var params secretKeygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age identity file",
		Description: `Generate an age x25519 identity, write it to --output with mode 0600,
and print its public key for use with 'ipcdemo secret seal -r'.`,
		Usage: "ipcdemo secret keygen --output <path>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runSecretKeygen(&params, time.Now())
		},
	}
}

func runSecretKeygen(params *secretKeygenParams, now time.Time) error {
	if params.Output == "" {
		return cli.Validation("--output is required")
	}

	identity, err := sealed.GenerateIdentity()
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer identity.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if params.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(params.Output, flags, 0o600)
	if errors.Is(err, os.ErrExist) {
		return cli.Validation("%s already exists", params.Output).
			WithHint("Pass --force to replace it. Secrets sealed to the old identity will no longer open.")
	}
	if err != nil {
		return cli.Internal("creating identity file: %w", err)
	}
	if err := identity.WriteIdentityFile(file, now); err != nil {
		file.Close()
		return cli.Internal("writing %s: %w", params.Output, err)
	}
	if err := file.Close(); err != nil {
		return cli.Internal("writing %s: %w", params.Output, err)
	}

	fmt.Fprintf(stdout, "public key: %s\n", identity.Recipient)
	return nil
}

type secretSealParams struct {
	Recipients []string `flag:"recipient,r" desc:"age public key (age1...) to seal to; repeatable (required)"`
	Output     string   `flag:"output,o"    desc:"sealed file to write, or - for stdout (required)"`
}

func secretSealCommand() *cli.Command {
	var params secretSealParams
	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt a shared-secret file to age recipients",
		Description: `Read a plaintext shared secret from <input> (or the first line of
stdin for -) and write it sealed to every --recipient.`,
		Usage: "ipcdemo secret seal -r <recipient>... -o <output> <input>",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return cli.Validation("exactly one input path required (got %d)", len(args)).
					WithHint("Usage: ipcdemo secret seal -r <recipient>... -o <output> <input>")
			}
			return runSecretSeal(&params, args[0])
		},
	}
}

func runSecretSeal(params *secretSealParams, input string) error {
	if len(params.Recipients) == 0 {
		return cli.Validation("at least one --recipient is required").
			WithHint("Create one with 'ipcdemo secret keygen -o <path>'.")
	}
	if params.Output == "" {
		return cli.Validation("--output is required")
	}

	plaintext, err := secret.ReadFromPath(input)
	if err != nil {
		return cli.Validation("%w", err)
	}
	defer plaintext.Close()

	ciphertext, err := sealed.Seal(plaintext.Bytes(), params.Recipients)
	if err != nil {
		return cli.Validation("%w", err)
	}

	if params.Output == "-" {
		_, err := stdout.Write(ciphertext)
		return err
	}
	if err := os.WriteFile(params.Output, ciphertext, 0o600); err != nil {
		return cli.Internal("writing sealed secret: %w", err)
	}
	fmt.Fprintf(stdout, "sealed %s to %d recipient(s) in %s\n", input, len(params.Recipients), params.Output)
	return nil
}
