// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inbox is the subscriber's view model. A [Board] observes a
// broker, checks each message's secure code, and files it into a tab:
// one tab per sender for messages that pass, a rejected tab for
// messages that fail and for broker errors, and a connections tab that
// lists every endpoint the first time it is seen.
//
// Tabs hold at most a fixed number of entries, newest first. Each tab
// carries an activity score that counts receipts and drops back to
// zero once the tab has been idle for the decay period.
//
// Accepted messages can be saved to a [messagelog] file on shutdown
// and restored on the next start.
package inbox
