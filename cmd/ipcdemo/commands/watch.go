// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/watch"
	"github.com/bureau-foundation/ipcdemo/lib/broker"
)

type watchParams struct {
	commonParams
	MessageLog   string   `flag:"message-log"   desc:"save accepted messages here at exit and reload them at start (.zst and .lz4 compress)"`
	AllowSenders []string `flag:"allow-sender"  desc:"accept messages only from these senders; repeatable"`
}

func watchCommand() *cli.Command {
	var params watchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Run the broker with a live terminal inbox",
		Description: `Run the broker and show incoming messages in a full-screen terminal UI.

Each sender gets a tab. Messages whose secure code does not verify land
in the "rejected" tab, and every new client endpoint is listed under
"connections". Tabs glow briefly when they receive something.

Warnings appear in the status line; use --log-file to keep everything.

Keys: tab/shift+tab switch tabs, x closes a tab, arrows and pgup/pgdn
scroll, q quits.`,
		Usage: "ipcdemo watch [flags]",
		Examples: []cli.Example{
			{
				Description: "Watch on the default port",
				Command:     "ipcdemo watch --secret-file ~/.config/ipcdemo/secret",
			},
			{
				Description: "Keep messages across restarts and only accept two senders",
				Command:     "ipcdemo watch --secret-file secret --message-log ~/.cache/ipcdemo/inbox.cbor.zst --allow-sender build-bot --allow-sender laptop",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("watch", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runWatch(ctx, &params)
		},
	}
}

func runWatch(ctx context.Context, params *watchParams) error {
	// Console output would tear the alt screen, so records go to the
	// status line instead.
	var tuiHandler *watch.LogHandler
	session, err := params.open("watch", func(level slog.Level) slog.Handler {
		tuiHandler = watch.NewLogHandler(max(level, slog.LevelWarn))
		return tuiHandler
	})
	if err != nil {
		return err
	}
	defer session.Close()

	cfg := session.config
	if params.MessageLog != "" {
		cfg.Inbox.LogFile = params.MessageLog
	}
	if len(params.AllowSenders) > 0 {
		cfg.Inbox.AllowSenders = params.AllowSenders
	}

	messageBroker := broker.New(brokerConfig(cfg, session, nil))
	board, err := newBoard(cfg, session, messageBroker)
	if err != nil {
		return err
	}
	if err := startBroker(ctx, messageBroker); err != nil {
		return err
	}
	stopObserving := messageBroker.Observe(board)

	model := watch.NewModel(board, watch.Options{
		Address: messageBroker.Addr().String(),
		Codes:   session.generator,
		Clock:   session.clock,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetProgram(program)

	runContext, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupContext := errgroup.WithContext(runContext)
	group.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return cli.Internal("terminal UI: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		program.Quit()
		return nil
	})
	group.Go(func() error {
		return session.watchSecret(groupContext)
	})
	err = group.Wait()

	tuiHandler.SetProgram(nil)
	if closeErr := messageBroker.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	stopObserving()

	if cfg.Inbox.LogFile != "" {
		if saveErr := board.SaveLog(cfg.Inbox.LogFile); saveErr != nil {
			err = errors.Join(err, cli.Internal("saving message log: %w", saveErr))
		}
	}
	return err
}
