// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/ipcdemo/cmd/ipcdemo/cli"
	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/config"
	"github.com/bureau-foundation/ipcdemo/lib/sealed"
	"github.com/bureau-foundation/ipcdemo/lib/secret"
	"github.com/bureau-foundation/ipcdemo/lib/securecode"
)

// commonParams are the flags every broker or client command shares.
// Set flags override the config file.
type commonParams struct {
	ConfigPath     string `flag:"config"          desc:"config file (.yaml, .yml, .json, .jsonc); defaults to $IPCDEMO_CONFIG"`
	Port           int    `flag:"port,p"          desc:"broker port (overrides the config file; default 32000)"`
	Secret         string `flag:"secret"          desc:"shared secret on the command line (visible to other local users; prefer --secret-file)"`
	SecretFile     string `flag:"secret-file"     desc:"file holding the shared secret, or - for the first line of stdin"`
	SecretIdentity string `flag:"secret-identity" desc:"age identity file; decrypts a sealed --secret-file"`
	LogFile        string `flag:"log-file"        desc:"also append JSON log records to this file"`
	LogLevel       string `flag:"log-level"       desc:"debug, info, warn or error" default:"info"`
}

// commandSession is the resolved state a command runs with. Close releases
// the secret and the log file.
type commandSession struct {
	config    *config.Config
	scheme    securecode.Scheme
	generator *securecode.Generator
	logger    *slog.Logger
	clock     clock.Clock

	closers []func() error
}

// open resolves config, logging and the shared secret. console, when
// non-nil, builds the console handler in place of stderr; the watch
// command routes records into its TUI.
func (params *commonParams) open(command string, console func(slog.Level) slog.Handler) (*commandSession, error) {
	cfg, err := config.Resolve(params.ConfigPath)
	if err != nil {
		return nil, cli.Validation("%w", err).
			WithHint("Check the file named by --config or $" + config.EnvironmentVariable + ".")
	}
	params.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%w", err)
	}

	level, err := cli.ParseLevel(params.LogLevel)
	if err != nil {
		return nil, err
	}
	var logger *slog.Logger
	if console != nil {
		logger = slog.New(console(level))
	} else {
		logger = cli.NewCommandLogger(level)
	}

	current := &commandSession{config: cfg, clock: clock.Real()}
	if params.LogFile != "" {
		withFile, closeFile, err := cli.WithLogFile(logger, params.LogFile)
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		logger = withFile
		current.closers = append(current.closers, closeFile)
	}
	current.logger = logger.With("command", command)

	scheme, err := securecode.ParseScheme(cfg.Code.Scheme, cfg.Code.Window.Std())
	if err != nil {
		current.Close()
		return nil, cli.Validation("%w", err)
	}
	current.scheme = scheme

	buffer, err := params.loadSecret(cfg, current.logger)
	if err != nil {
		current.Close()
		return nil, err
	}
	current.generator = securecode.NewGenerator(scheme, buffer, current.clock)
	current.closers = append(current.closers, func() error {
		if source, ok := current.generator.SetSource(nil).(*secret.Buffer); ok && source != nil {
			return source.Close()
		}
		return nil
	})
	return current, nil
}

// apply copies set flags over cfg.
func (params *commonParams) apply(cfg *config.Config) {
	if params.Port != 0 {
		cfg.Broker.Port = params.Port
		cfg.Sender.Port = params.Port
	}
	if params.SecretFile != "" {
		cfg.Code.SecretFile = params.SecretFile
	}
	if params.SecretIdentity != "" {
		cfg.Code.SecretIdentity = params.SecretIdentity
	}
}

func (params *commonParams) loadSecret(cfg *config.Config, logger *slog.Logger) (*secret.Buffer, error) {
	if params.Secret != "" {
		if cfg.Code.SecretIdentity != "" {
			return nil, cli.Validation("--secret cannot be combined with --secret-identity")
		}
		logger.Warn("shared secret given on the command line; it is visible in the process list")
		buffer, err := secret.NewFromBytes([]byte(params.Secret))
		if err != nil {
			return nil, cli.Internal("protecting shared secret: %w", err)
		}
		return buffer, nil
	}
	if cfg.Code.SecretFile == "" {
		return nil, cli.Validation("no shared secret configured").
			WithHint("Pass --secret-file (or set code.secret_file in the config file). Both ends must use the same secret.")
	}
	buffer, err := sealed.LoadSecret(cfg.Code.SecretIdentity)(cfg.Code.SecretFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, cli.Validation("reading shared secret: %w", err)
	}
	if err != nil {
		return nil, cli.Validation("reading shared secret from %s: %w", cfg.Code.SecretFile, err)
	}
	if cfg.Code.SecretIdentity == "" && sealed.IsArmored(buffer.Bytes()) {
		buffer.Close()
		return nil, cli.Validation("%s is a sealed secret file", cfg.Code.SecretFile).
			WithHint("Pass --secret-identity with the age identity it was sealed to.")
	}
	return buffer, nil
}

// watchSecret reloads the secret file into the generator until ctx is
// done. It returns nil at once when watching is off or the secret does
// not come from a regular file.
func (s *commandSession) watchSecret(ctx context.Context) error {
	path := s.config.Code.SecretFile
	if !s.config.Code.WatchSecret || path == "" || path == "-" {
		return nil
	}
	watcher, err := secret.NewWatcher(path, secret.WatchOptions{
		Load:   sealed.LoadSecret(s.config.Code.SecretIdentity),
		Clock:  s.clock,
		Logger: s.logger,
	})
	if err != nil {
		return fmt.Errorf("watching shared secret: %w", err)
	}
	return watcher.Run(ctx, func(buffer *secret.Buffer) {
		previous := s.generator.SetSource(buffer)
		if closer, ok := previous.(*secret.Buffer); ok && closer != nil {
			closer.Close()
		}
		s.logger.Info("shared secret reloaded", "path", path)
	})
}

// Close releases the session's resources in reverse order.
func (s *commandSession) Close() {
	for index := len(s.closers) - 1; index >= 0; index-- {
		if err := s.closers[index](); err != nil && s.logger != nil {
			s.logger.Warn("closing session resource", "error", err)
		}
	}
	s.closers = nil
}
