// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the binary entrypoint helpers: reporting a
// fatal error to stderr before or after the structured logger exists,
// and the delayed exit the stress client uses once its circuit breaker
// trips.
package process
