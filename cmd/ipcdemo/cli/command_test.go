// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

var discard = slog.New(slog.DiscardHandler)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "ipcdemo",
		Subcommands: []*Command{
			{
				Name: "serve",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "serve"
					return nil
				},
			},
			{
				Name: "send",
				Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
					called = "send"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"send"}, discard); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "send" {
		t.Errorf("dispatched to %q, want %q", called, "send")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var receivedArgs []string

	root := &Command{
		Name: "ipcdemo",
		Subcommands: []*Command{
			{
				Name: "secret",
				Subcommands: []*Command{
					{
						Name: "seal",
						Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"secret", "seal", "secret.txt"}, discard); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "secret.txt" {
		t.Errorf("args = %v, want [secret.txt]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var port int
	var receivedArgs []string

	command := &Command{
		Name: "send",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			flagSet.IntVar(&port, "port", 32000, "broker port")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--port", "4000", "hello"}, discard); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if port != 4000 {
		t.Errorf("port = %d, want 4000", port)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "hello" {
		t.Errorf("args = %v, want [hello]", receivedArgs)
	}
}

func TestCommand_Execute_PassesContextAndLogger(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")
	var buffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buffer, nil))

	command := &Command{
		Name: "code",
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if ctx.Value(key{}) != "marker" {
				t.Error("Run received a different context")
			}
			logger.Info("ran")
			return nil
		},
	}
	if err := command.Execute(ctx, nil, logger); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(buffer.String(), "ran") {
		t.Errorf("logger output = %q", buffer.String())
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "ipcdemo",
		Subcommands: []*Command{{Name: "serve"}, {Name: "stress"}},
	}

	err := root.Execute(context.Background(), []string{"serv"}, discard)
	if err == nil {
		t.Fatal("Execute() accepted an unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "serve"`) {
		t.Errorf("error = %q, want a suggestion", err)
	}
	if CategoryOf(err) != CategoryValidation {
		t.Errorf("category = %q, want validation", CategoryOf(err))
	}
	if !strings.Contains(HintOf(err), "ipcdemo --help") {
		t.Errorf("hint = %q", HintOf(err))
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	var port int
	command := &Command{
		Name: "send",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			flagSet.IntVar(&port, "port", 0, "broker port")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--prot", "1"}, discard)
	if err == nil {
		t.Fatal("Execute() accepted an unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --port?") {
		t.Errorf("error = %q, want a --port suggestion", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root := &Command{
		Name:        "secret",
		Subcommands: []*Command{{Name: "keygen"}},
	}
	err := root.Execute(context.Background(), nil, discard)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("Execute() error = %v, want subcommand required", err)
	}
}

func TestCommand_Execute_RunErrorPropagates(t *testing.T) {
	sentinel := errors.New("broker unreachable")
	command := &Command{
		Name: "send",
		Run:  func(ctx context.Context, args []string, logger *slog.Logger) error { return sentinel },
	}
	if err := command.Execute(context.Background(), nil, discard); !errors.Is(err, sentinel) {
		t.Errorf("Execute() error = %v, want %v", err, sentinel)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var port int
	root := &Command{
		Name:        "ipcdemo",
		Description: "Loopback IPC broker.",
		Subcommands: []*Command{
			{
				Name:    "send",
				Summary: "Send one message",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
					flagSet.IntVar(&port, "port", 32000, "broker port")
					return flagSet
				},
				Examples: []Example{{Description: "Say hello", Command: "ipcdemo send hello"}},
			},
		},
	}

	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{"Loopback IPC broker.", "ipcdemo <command> [flags]", "send", "Send one message"} {
		if !strings.Contains(output, want) {
			t.Errorf("root help missing %q:\n%s", want, output)
		}
	}

	send := root.Subcommands[0]
	send.parent = root
	buffer.Reset()
	send.PrintHelp(&buffer)
	output = buffer.String()
	for _, want := range []string{"ipcdemo send [flags]", "--port", "# Say hello", "ipcdemo send hello"} {
		if !strings.Contains(output, want) {
			t.Errorf("send help missing %q:\n%s", want, output)
		}
	}
}
