// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/broker"
	"github.com/bureau-foundation/ipcdemo/lib/config"
	"github.com/bureau-foundation/ipcdemo/lib/inbox"
)

type serveParams struct {
	commonParams
	MetricsListen string `flag:"metrics-listen" desc:"serve Prometheus metrics at /metrics on this address (e.g. 127.0.0.1:9132)"`
	MessageLog    string `flag:"message-log"    desc:"save accepted messages here at exit and reload them at start (.zst and .lz4 compress)"`
}

func serveCommand() *cli.Command {
	var params serveParams
	return &cli.Command{
		Name:    "serve",
		Summary: "Run the broker without a terminal UI",
		Description: `Run the broker in the foreground and log every message it receives.

Messages are verified against the shared secret as they arrive; the log
records each as received or rejected. Stop with Ctrl-C.`,
		Usage: "ipcdemo serve [flags]",
		Examples: []cli.Example{
			{
				Description: "Serve on the default port",
				Command:     "ipcdemo serve --secret-file ~/.config/ipcdemo/secret",
			},
			{
				Description: "Serve with Prometheus metrics",
				Command:     "ipcdemo serve --secret-file secret --metrics-listen 127.0.0.1:9132",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("serve", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument %q", args[0])
			}
			return runServe(ctx, &params, nil)
		},
	}
}

// runServe blocks until ctx is canceled. ready, when non-nil, is called
// once the broker is listening with its address and the metrics
// address (nil without --metrics-listen).
func runServe(ctx context.Context, params *serveParams, ready func(brokerAddr, metricsAddr net.Addr)) error {
	session, err := params.open("serve", nil)
	if err != nil {
		return err
	}
	defer session.Close()

	cfg := session.config
	if params.MetricsListen != "" {
		cfg.Broker.MetricsListen = params.MetricsListen
	}
	if params.MessageLog != "" {
		cfg.Inbox.LogFile = params.MessageLog
	}

	registry := prometheus.NewRegistry()
	messageBroker := broker.New(brokerConfig(cfg, session, registry))
	board, err := newBoard(cfg, session, messageBroker)
	if err != nil {
		return err
	}

	var metricsListener net.Listener
	if cfg.Broker.MetricsListen != "" {
		metricsListener, err = net.Listen("tcp", cfg.Broker.MetricsListen)
		if err != nil {
			return cli.Transient("metrics listener: %w", err)
		}
	}

	if err := startBroker(ctx, messageBroker); err != nil {
		if metricsListener != nil {
			metricsListener.Close()
		}
		return err
	}
	stopObserving := messageBroker.Observe(board)

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-groupContext.Done()
		err := messageBroker.Close()
		stopObserving()
		return err
	})
	group.Go(func() error {
		return session.watchSecret(groupContext)
	})
	if metricsListener != nil {
		group.Go(func() error {
			return serveMetrics(groupContext, metricsListener, registry, session.logger)
		})
	}

	if ready != nil {
		var metricsAddr net.Addr
		if metricsListener != nil {
			metricsAddr = metricsListener.Addr()
		}
		ready(messageBroker.Addr(), metricsAddr)
	}
	err = group.Wait()

	if cfg.Inbox.LogFile != "" {
		if saveErr := board.SaveLog(cfg.Inbox.LogFile); saveErr != nil {
			err = errors.Join(err, cli.Internal("saving message log: %w", saveErr))
		}
	}
	session.logger.Info("broker shut down",
		"received", board.Received(),
		"dropped", board.Dropped(),
		"endpoints", len(messageBroker.ConnectionHistory()),
	)
	return err
}

// brokerConfig maps the file configuration onto a broker. Port 0 in
// the file asks for a free port.
func brokerConfig(cfg *config.Config, s *commandSession, registerer prometheus.Registerer) broker.Config {
	port := cfg.Broker.Port
	if port == 0 {
		port = broker.EphemeralPort
	}
	return broker.Config{
		Host:         cfg.Broker.Host,
		Port:         port,
		ReadTimeout:  cfg.Broker.ReadTimeout.Std(),
		MaxLineBytes: cfg.Broker.MaxLineBytes,
		Registry: broker.RegistryPolicy{
			MaxEntries: cfg.Broker.Registry.MaxEntries,
			TTL:        cfg.Broker.Registry.TTL.Std(),
		},
		Clock:   s.clock,
		Logger:  s.logger,
		Metrics: registerer,
	}
}

// newBoard builds the inbox for cfg and restores the message log when
// one is configured.
func newBoard(cfg *config.Config, s *commandSession, history inbox.History) (*inbox.Board, error) {
	board, err := inbox.New(inbox.Config{
		Verifier:     s.generator,
		History:      history,
		MaxMessages:  cfg.Inbox.MaxMessages,
		DecayAfter:   cfg.Inbox.DecayAfter.Std(),
		AllowSenders: cfg.Inbox.AllowSenders,
		Clock:        s.clock,
		Logger:       s.logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	if cfg.Inbox.LogFile != "" {
		if _, err := board.RestoreLog(cfg.Inbox.LogFile, cfg.Inbox.LogMaxAge.Std()); err != nil {
			s.logger.Warn("message log not restored", "path", cfg.Inbox.LogFile, "error", err)
		}
	}
	return board, nil
}

func startBroker(ctx context.Context, messageBroker *broker.Broker) error {
	if err := messageBroker.Start(ctx); err != nil {
		return cli.Transient("%w", err).
			WithHint("Another broker may already hold the port. Stop it or pass --port.")
	}
	return nil
}

// serveMetrics serves registry at /metrics until ctx is done.
func serveMetrics(ctx context.Context, listener net.Listener, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- server.Serve(listener) }()
	logger.Info("serving metrics", "address", listener.Addr().String())

	select {
	case err := <-errs:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}
	shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
