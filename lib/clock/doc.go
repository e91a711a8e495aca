// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Secure codes rotate on wall-clock buckets, inbox tabs decay after an
// idle period, and the stress client waits a grace delay before exiting.
// All of these read time through a [Clock] so tests can pin the clock to
// a bucket edge and step across it with [FakeClock.Advance] instead of
// sleeping.
//
// Production code uses [Real]. Tests use [Fake]:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 11, 59, 59, 0, time.UTC))
//	code, _ := scheme.Generate(secret, c.Now())
//	c.Advance(2 * time.Second) // now in the next hour bucket
//
// A goroutine blocked on After holds a waiter. Call
// [FakeClock.WaitForTimers] before Advance so the waiter exists when
// time moves.
package clock
