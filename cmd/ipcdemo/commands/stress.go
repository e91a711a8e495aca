// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/process"
	"github.com/bureau-foundation/ipcdemo/lib/sender"
)

type stressParams struct {
	commonParams
	Host     string        `flag:"host"     desc:"broker host (overrides the config file; default 127.0.0.1)"`
	Sender   string        `flag:"sender"   desc:"Sender field of the messages (default: config sender.name, then the host name)"`
	Type     string        `flag:"type"     desc:"Type field of the messages" default:"data"`
	Count    int           `flag:"count,n"  desc:"number of messages to send" default:"400"`
	Interval time.Duration `flag:"interval" desc:"pause between messages" default:"1.5s"`
	Seed     int           `flag:"seed"     desc:"payload generator seed (0 picks one at random)"`
}

func stressCommand() *cli.Command {
	var params stressParams
	return &cli.Command{
		Name:    "stress",
		Summary: "Send a paced stream of generated messages",
		Description: `Send --count messages, one every --interval, each with a payload of
5 to 15 random technical words.

Failed sends are logged and the stream continues, until one failure
class (connect or write) has failed more than sender.breaker_threshold
times. Then the circuit breaker trips and the process exits with status
1 after sender.exit_grace.`,
		Usage: "ipcdemo stress [flags]",
		Examples: []cli.Example{
			{
				Description: "Send the default 400 messages every 1.5 seconds",
				Command:     "ipcdemo stress --secret-file secret",
			},
			{
				Description: "Send 50 messages as fast as the broker takes them",
				Command:     "ipcdemo stress --secret-file secret -n 50 --interval 0",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("stress", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runStress(ctx, &params, func(grace time.Duration) {
				process.ExitAfter(clock.Real(), grace, 1)
			})
		},
	}
}

// runStress sends the stream. When the breaker trips it logs, calls
// exit with the configured grace, and returns the breaker's error.
func runStress(ctx context.Context, params *stressParams, exit func(grace time.Duration)) error {
	if params.Count < 1 {
		return cli.Validation("--count must be at least 1")
	}
	if params.Interval < 0 {
		return cli.Validation("--interval must not be negative")
	}

	session, err := params.open("stress", nil)
	if err != nil {
		return err
	}
	defer session.Close()

	client, err := newSender(session, params.Host, params.Sender, nil)
	if err != nil {
		return err
	}

	limit := rate.Inf
	if params.Interval > 0 {
		limit = rate.Every(params.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	seed := uint64(params.Seed)
	if seed == 0 {
		seed = rand.Uint64()
	}
	random := rand.New(rand.NewPCG(seed, seed>>1|1))

	logger := session.logger.With("address", client.Address(), "sender", client.Name())
	logger.Info("stress run starting", "count", params.Count, "interval", params.Interval, "seed", seed)

	sent := 0
	for number := 1; number <= params.Count; number++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		payload := sender.Gibberish(random, sender.GibberishMinWords, sender.GibberishMaxWords)
		receipt, err := client.Send(ctx, sender.Request{Type: params.Type, Payload: payload})
		switch {
		case err == nil:
			sent++
			logger.Debug("message sent", "number", number, "bytes", receipt.Bytes, "elapsed", receipt.Elapsed)
			fmt.Fprintf(stdout, "#%d %s\n", number, payload)

		case errors.Is(err, sender.ErrCircuitOpen):
			grace := session.config.Sender.ExitGrace.Std()
			logger.Error("circuit breaker tripped, exiting",
				"number", number,
				"error", err,
				"exit_in", grace,
			)
			exit(grace)
			return cli.Transient("%w", err)

		case ctx.Err() != nil:
			return nil

		default:
			// The sender has already logged the failure with its counts.
			fmt.Fprintf(stdout, "#%d failed: %v\n", number, err)
		}
	}

	logger.Info("stress run finished", "sent", sent, "count", params.Count)
	fmt.Fprintf(stdout, "sent %d of %d messages\n", sent, params.Count)
	return nil
}
