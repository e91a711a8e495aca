// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
)

// DefaultThreshold is how many failures of one class a Breaker
// tolerates before the next one trips it.
const DefaultThreshold = 3

// ErrCircuitOpen matches every error from a tripped breaker.
var ErrCircuitOpen = errors.New("sender: circuit open")

// Trip describes the failure that opened the breaker.
type Trip struct {
	Class    ipcerr.Class
	Failures int
	Err      error
	At       time.Time
}

// OpenError is returned by a tripped breaker. It matches
// ErrCircuitOpen and unwraps to the failure that tripped it.
type OpenError struct {
	Trip Trip
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("sender: circuit open after %d %s failures: %v", e.Trip.Failures, e.Trip.Class, e.Trip.Err)
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

func (e *OpenError) Unwrap() error { return e.Trip.Err }

// Breaker counts transport and io failures. Counts only grow until
// Reset; successes do not lower them.
type Breaker struct {
	threshold int
	onTrip    func(Trip)

	mu        sync.Mutex
	transport int
	io        int
	trip      *Trip
}

// NewBreaker returns a closed breaker. A non-positive threshold selects
// DefaultThreshold. onTrip may be nil.
func NewBreaker(threshold int, onTrip func(Trip)) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Breaker{threshold: threshold, onTrip: onTrip}
}

// Allow returns an *OpenError if the breaker has tripped.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.trip != nil {
		return &OpenError{Trip: *b.trip}
	}
	return nil
}

// Record counts err against its class and returns the error the caller
// should report: err itself, or an *OpenError when this failure trips
// the breaker. Errors outside the transport and io classes are
// returned unchanged and not counted.
func (b *Breaker) Record(err error, at time.Time) error {
	class := ipcerr.ClassOf(err)
	b.mu.Lock()
	var count *int
	switch class {
	case ipcerr.ClassTransport:
		count = &b.transport
	case ipcerr.ClassIO:
		count = &b.io
	default:
		b.mu.Unlock()
		return err
	}
	*count++
	if b.trip != nil || *count <= b.threshold {
		b.mu.Unlock()
		return err
	}
	trip := Trip{Class: class, Failures: *count, Err: err, At: at}
	b.trip = &trip
	b.mu.Unlock()

	if b.onTrip != nil {
		b.onTrip(trip)
	}
	return &OpenError{Trip: trip}
}

// Counts returns the transport and io failure counts.
func (b *Breaker) Counts() (transport, io int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport, b.io
}

// Tripped returns the trip, if any.
func (b *Breaker) Tripped() (Trip, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.trip == nil {
		return Trip{}, false
	}
	return *b.trip, true
}

// Reset zeroes both counts and closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport, b.io, b.trip = 0, 0, nil
}
