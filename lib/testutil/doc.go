// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by package tests: bounded
// channel waits and free loopback ports.
package testutil
