// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// NewCommandLogger creates the logger commands receive. When stderr is
// a terminal it uses slog.TextHandler for human-readable output;
// otherwise slog.JSONHandler, so piped output stays machine-parseable.
func NewCommandLogger(level slog.Level) *slog.Logger {
	return slog.New(newStderrHandler(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level))
}

func newStderrHandler(w io.Writer, terminal bool, level slog.Level) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if terminal {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, Validation("invalid log level %q: want debug, info, warn or error", value)
	}
	return level, nil
}

// WithLogFile returns a logger that writes every record at debug level
// and above as JSON to path, in addition to base's handler. The file is
// appended to. The returned function closes it.
func WithLogFile(base *slog.Logger, path string) (*slog.Logger, func() error, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(FanoutHandler{base.Handler(), fileHandler}), file.Close, nil
}

// FanoutHandler sends each record to every handler enabled for its
// level. A record is enabled if any handler is enabled for it.
type FanoutHandler []slog.Handler

func (handlers FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers FanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers FanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(FanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}
