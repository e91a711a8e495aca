// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sender is the publishing side of ipcdemo. Each
// [Sender.Send] opens a fresh TCP connection to the broker, writes one
// message line, and closes; nothing is retried.
//
// Every Sender owns a [Breaker] with separate transport and io failure
// counters. Once either counter passes the threshold the breaker trips:
// that Send and every later one fail with an error matching
// [ErrCircuitOpen], and Config.OnTrip runs once. What to do about a
// tripped breaker (give up, exit, wait and Reset) is the caller's
// decision.
package sender
