// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStderrHandlerFormat(t *testing.T) {
	var text, structured bytes.Buffer
	slog.New(newStderrHandler(&text, true, slog.LevelInfo)).Info("listening", "port", 32000)
	slog.New(newStderrHandler(&structured, false, slog.LevelInfo)).Info("listening", "port", 32000)

	if !strings.Contains(text.String(), "msg=listening port=32000") {
		t.Errorf("terminal output = %q", text.String())
	}
	var record map[string]any
	if err := json.Unmarshal(structured.Bytes(), &record); err != nil {
		t.Fatalf("non-terminal output is not JSON: %q", structured.String())
	}
	if record["msg"] != "listening" || record["port"] != float64(32000) {
		t.Errorf("record = %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(input)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); CategoryOf(err) != CategoryValidation {
		t.Errorf("ParseLevel(loud) error = %v", err)
	}
}

func TestWithLogFile(t *testing.T) {
	var console bytes.Buffer
	base := slog.New(slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelInfo}))
	path := filepath.Join(t.TempDir(), "ipcdemo.log")

	logger, closeFile, err := WithLogFile(base, path)
	if err != nil {
		t.Fatalf("WithLogFile: %v", err)
	}
	logger = logger.With("command", "serve")
	logger.Debug("handler started")
	logger.Info("listening")
	if err := closeFile(); err != nil {
		t.Fatalf("closing log file: %v", err)
	}

	if strings.Contains(console.String(), "handler started") {
		t.Error("debug record reached the info-level console")
	}
	if !strings.Contains(console.String(), "listening") {
		t.Error("info record missing from console")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log file has %d lines, want 2:\n%s", len(lines), data)
	}
	for _, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if record["command"] != "serve" {
			t.Errorf("log line lost attrs: %q", line)
		}
	}
}
