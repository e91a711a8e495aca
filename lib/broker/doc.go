// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker is the listening side of ipcdemo: a loopback TCP
// server that reads exactly one newline-terminated JSON message per
// connection and republishes what it saw to subscribers.
//
// # Lifecycle
//
// A [Broker] moves Stopped → Starting → Listening → Stopping →
// Stopped. [Broker.Start] binds synchronously, so a port already in use
// is reported to the caller, then runs the accept loop on its own
// goroutine. [Broker.Stop] cancels the loop, closes the listener, wakes
// handlers blocked in reads, and waits for them to finish. Canceling
// the context passed to Start has the same effect as Stop.
//
// # Connections
//
// The client's endpoint is recorded in the [Registry] before the
// connection's handler goroutine starts, so [Broker.ConnectionHistory]
// sees it immediately. Each handler reads one line under a read
// deadline and a size cap, publishes the raw line, decodes it with
// lib/ipcmsg, publishes the message or the decode error, and closes the
// connection. One connection's failure never affects another, and the
// number of concurrent handlers is not limited.
//
// # Events
//
// Every line read produces an [EventLine] before decoding is attempted.
// A decoded line then produces an [EventMessage]; anything else that
// goes wrong produces an [EventError] carrying an *ipcerr.Error. The
// broker does not verify secure codes: a message with a wrong code is
// still an EventMessage, and classifying it is the subscriber's call.
//
// Consumers either read a [Subscription] channel or register an
// [Observer], which is driven from its own goroutine so its methods
// are never called concurrently. Delivery is lossless: a handler whose
// event does not fit in a subscriber's buffer waits for room, so a slow
// subscriber slows the connections feeding it rather than missing
// events. The wait ends early only when that subscription closes or the
// broker stops. Events from different connections arrive in no
// particular order.
package broker
