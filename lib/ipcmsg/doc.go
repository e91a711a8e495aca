// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipcmsg defines the wire message exchanged between senders and
// the broker, and its line codec.
//
// A connection carries exactly one message: a single JSON object on one
// UTF-8 line terminated by "\n":
//
//	{"Type":"data","Payload":"hello","Time":"2026-01-15T12:00:00Z","Sender":"build-01","Secret":"042117"}
//
// Field names are matched case-insensitively on decode, so senders may
// use "type" or "TYPE". The Secret field carries a secure code from
// lib/securecode, never the shared secret itself.
package ipcmsg
