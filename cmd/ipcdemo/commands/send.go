// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/ipcmsg"
	"github.com/bureau-foundation/ipcdemo/lib/netutil"
	"github.com/bureau-foundation/ipcdemo/lib/sender"
)

type sendParams struct {
	commonParams
	Host   string `flag:"host"   desc:"broker host (overrides the config file; default 127.0.0.1)"`
	Sender string `flag:"sender" desc:"Sender field of the message (default: config sender.name, then the host name)"`
	Type   string `flag:"type"   desc:"Type field of the message" default:"data"`
}

func sendCommand() *cli.Command {
	var params sendParams
	return &cli.Command{
		Name:    "send",
		Summary: "Send one message to the broker",
		Description: `Send one message to a running broker and print what was sent.

The payload is the remaining arguments joined with spaces. The message
carries the secure code for the current window.`,
		Usage: "ipcdemo send [flags] <payload>...",
		Examples: []cli.Example{
			{
				Description: "Send a greeting",
				Command:     "ipcdemo send --secret-file secret hello there",
			},
			{
				Description: "Send under a different sender name and type",
				Command:     "ipcdemo send --secret-file secret --sender build-bot --type status 'build 42 passed'",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("send", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) == 0 {
				return cli.Validation("payload required").
					WithHint("Usage: ipcdemo send [flags] <payload>...")
			}
			return runSend(ctx, &params, strings.Join(args, " "))
		},
	}
}

func runSend(ctx context.Context, params *sendParams, payload string) error {
	session, err := params.open("send", nil)
	if err != nil {
		return err
	}
	defer session.Close()

	client, err := newSender(session, params.Host, params.Sender, nil)
	if err != nil {
		return err
	}
	receipt, err := client.Send(ctx, sender.Request{Type: params.Type, Payload: payload})
	if netutil.IsRefused(err) {
		return cli.Transient("%w", err).
			WithHint(fmt.Sprintf("Nothing is listening on %s. Start a broker with 'ipcdemo serve' or 'ipcdemo watch'.", client.Address()))
	}
	if err != nil {
		return cli.Transient("%w", err)
	}

	fmt.Fprintf(stdout, "sent %d bytes to %s from %s in %s\n",
		receipt.Bytes, client.Address(), receipt.Local, receipt.Elapsed.Round(time.Microsecond))
	fmt.Fprintln(stdout, ipcmsg.Format(receipt.Message))
	return nil
}

// newSender builds a client from the session config. host and name
// override the file when set.
func newSender(s *commandSession, host, name string, onTrip func(sender.Trip)) (*sender.Sender, error) {
	cfg := s.config.Sender
	if host != "" {
		cfg.Host = host
	}
	if name != "" {
		cfg.Name = name
	}
	client, err := sender.New(sender.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Name:             cfg.Name,
		Codes:            s.generator,
		DialTimeout:      cfg.DialTimeout.Std(),
		BreakerThreshold: cfg.BreakerThreshold,
		OnTrip:           onTrip,
		Clock:            s.clock,
		Logger:           s.logger,
	})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return client, nil
}
