// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
)

var epoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	var trips []Trip
	breaker := NewBreaker(3, func(trip Trip) { trips = append(trips, trip) })

	failure := ipcerr.Transport("dial", errors.New("connection refused"))
	for i := 1; i <= 3; i++ {
		if err := breaker.Record(failure, epoch); errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("failure %d tripped the breaker", i)
		}
		if err := breaker.Allow(); err != nil {
			t.Fatalf("Allow after failure %d: %v", i, err)
		}
	}

	err := breaker.Record(failure, epoch)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("fourth failure: got %v, want ErrCircuitOpen", err)
	}
	if ipcerr.ClassOf(err) != ipcerr.ClassTransport {
		t.Errorf("open error class = %v, want transport", ipcerr.ClassOf(err))
	}
	var open *OpenError
	if !errors.As(err, &open) || open.Trip.Failures != 4 {
		t.Errorf("open error = %#v", err)
	}
	if !errors.Is(breaker.Allow(), ErrCircuitOpen) {
		t.Error("Allow on a tripped breaker returned nil")
	}

	breaker.Record(failure, epoch)
	if len(trips) != 1 {
		t.Fatalf("onTrip called %d times, want 1", len(trips))
	}
	if trips[0].Class != ipcerr.ClassTransport || !trips[0].At.Equal(epoch) {
		t.Errorf("trip = %+v", trips[0])
	}
}

func TestBreakerCountsClassesSeparately(t *testing.T) {
	breaker := NewBreaker(3, nil)
	for range 3 {
		breaker.Record(ipcerr.Transport("dial", errors.New("refused")), epoch)
		breaker.Record(ipcerr.IO("write", errors.New("broken pipe")), epoch)
	}
	if _, tripped := breaker.Tripped(); tripped {
		t.Fatal("breaker tripped with three failures per class")
	}
	transport, io := breaker.Counts()
	if transport != 3 || io != 3 {
		t.Errorf("Counts() = %d, %d; want 3, 3", transport, io)
	}

	err := breaker.Record(ipcerr.IO("write", errors.New("broken pipe")), epoch)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("fourth io failure: got %v", err)
	}
	trip, _ := breaker.Tripped()
	if trip.Class != ipcerr.ClassIO {
		t.Errorf("trip class = %v, want io", trip.Class)
	}
}

func TestBreakerIgnoresOtherClasses(t *testing.T) {
	breaker := NewBreaker(1, nil)
	plain := errors.New("generating code")
	for range 5 {
		if err := breaker.Record(plain, epoch); err != plain {
			t.Fatalf("Record returned %v, want the original error", err)
		}
		breaker.Record(ipcerr.Protocol("encode", "bad %s", "line"), epoch)
	}
	if transport, io := breaker.Counts(); transport != 0 || io != 0 {
		t.Errorf("Counts() = %d, %d; want 0, 0", transport, io)
	}
}

func TestBreakerReset(t *testing.T) {
	calls := 0
	breaker := NewBreaker(0, func(Trip) { calls++ })
	failure := ipcerr.Transport("dial", errors.New("refused"))
	for range DefaultThreshold + 1 {
		breaker.Record(failure, epoch)
	}
	if breaker.Allow() == nil {
		t.Fatal("breaker with default threshold did not trip")
	}

	breaker.Reset()
	if err := breaker.Allow(); err != nil {
		t.Fatalf("Allow after Reset: %v", err)
	}
	if transport, _ := breaker.Counts(); transport != 0 {
		t.Errorf("transport count after Reset = %d", transport)
	}
	for range DefaultThreshold + 1 {
		breaker.Record(failure, epoch)
	}
	if calls != 2 {
		t.Errorf("onTrip called %d times across a reset, want 2", calls)
	}
}
