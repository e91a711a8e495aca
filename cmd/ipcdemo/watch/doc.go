// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch is the terminal subscriber: a bubbletea program that
// renders an [inbox.Board] as a row of tabs above a scrolling list of
// entries, with the current secure code and its remaining lifetime in
// the header. Warnings logged while the program runs appear in the
// status line instead of corrupting the alt screen.
package watch
