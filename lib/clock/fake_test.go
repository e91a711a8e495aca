// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 11, 59, 0, 0, time.UTC)

func TestFakeNowAdvance(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(90 * time.Second)
	if got, want := clock.Now(), epoch.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(2 * time.Second)

	clock.Advance(time.Second)
	select {
	case <-channel:
		t.Fatal("After fired early")
	default:
	}

	clock.Advance(time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}

	if pending := clock.PendingTimers(); pending != 0 {
		t.Errorf("PendingTimers() = %d after fire, want 0", pending)
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	clock := Fake(epoch)
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should be ready immediately")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan time.Time)
	go func() {
		done <- <-clock.After(2 * time.Second)
	}()

	clock.WaitForTimers(1)
	clock.Advance(2 * time.Second)

	select {
	case fired := <-done:
		if want := epoch.Add(2 * time.Second); !fired.Equal(want) {
			t.Errorf("After delivered %v, want %v", fired, want)
		}
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeAdvanceFiresEveryDueWaiter(t *testing.T) {
	clock := Fake(epoch)
	short := clock.After(time.Second)
	long := clock.After(time.Hour)
	later := clock.After(2 * time.Hour)

	clock.Advance(time.Hour)
	for name, channel := range map[string]<-chan time.Time{"1s": short, "1h": long} {
		select {
		case <-channel:
		default:
			t.Errorf("%s waiter did not fire", name)
		}
	}
	select {
	case <-later:
		t.Error("2h waiter fired after 1h")
	default:
	}
	if pending := clock.PendingTimers(); pending != 1 {
		t.Errorf("PendingTimers() = %d, want 1", pending)
	}
}

func TestRealAfterNonPositive(t *testing.T) {
	select {
	case <-Real().After(-time.Second):
	default:
		t.Fatal("Real().After(<0) should be ready immediately")
	}
}

func TestFakeSetBackwards(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(time.Minute)

	earlier := epoch.Add(-time.Hour)
	clock.Set(earlier)
	if !clock.Now().Equal(earlier) {
		t.Fatalf("Now() = %v, want %v", clock.Now(), earlier)
	}
	select {
	case <-channel:
		t.Fatal("moving backwards fired a waiter")
	default:
	}
}
