// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the rendering pieces of the terminal subscriber:
// the color theme, the tab bar, the scrollbar beside the message
// viewport, and the glow that marks tabs which just received entries.
// The bubbletea model that ties them together lives with the watch
// command.
package tui
