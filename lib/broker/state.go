// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Start when the broker is not
	// stopped.
	ErrAlreadyStarted = errors.New("broker: already started")

	// ErrNotRunning is returned by Stop when the broker is not
	// listening.
	ErrNotRunning = errors.New("broker: not running")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("broker: closed")
)

// State is a broker lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
