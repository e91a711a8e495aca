// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg carries a log record into the model for the status
// line.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the status line after logRecordFadeDelay.
type logRecordFadeMsg struct {
	summary string
}

// logRecordFadeDelay is how long a log record stays in the status
// line.
const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that delivers records at or above its
// level to a bubbletea program. Records before SetProgram are dropped.
// Handlers derived with WithAttrs and WithGroup share the program, so
// one SetProgram call reaches all of them.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	group   string
}

// NewLogHandler returns a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{level: level, program: &atomic.Pointer[tea.Program]{}}
}

// SetProgram sets the program that receives records. Safe to call
// from any goroutine.
func (handler *LogHandler) SetProgram(program *tea.Program) {
	handler.program.Store(program)
}

func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	program := handler.program.Load()
	if program == nil {
		return nil
	}
	program.Send(logRecordMsg{Summary: handler.summarize(record), Level: record.Level})
	return nil
}

// summarize renders "message (key=value, ...)".
func (handler *LogHandler) summarize(record slog.Record) string {
	parts := make([]string, 0, len(handler.attrs)+record.NumAttrs())
	prefix := ""
	if handler.group != "" {
		prefix = handler.group + "."
	}
	for _, attr := range handler.attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		return true
	})
	if len(parts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(parts, ", ") + ")"
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   append(slices.Clone(handler.attrs), attrs...),
		group:   handler.group,
	}
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	group := name
	if handler.group != "" {
		group = handler.group + "." + name
	}
	return &LogHandler{
		level:   handler.level,
		program: handler.program,
		attrs:   slices.Clone(handler.attrs),
		group:   group,
	}
}
