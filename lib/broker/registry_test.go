// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
)

func TestRegistryRecordKeepsFirstSeen(t *testing.T) {
	fake := clock.Fake(epoch)
	registry := NewRegistry(RegistryPolicy{}, fake)

	first, added := registry.Record("127.0.0.1:5000")
	if !added || !first.Equal(epoch) {
		t.Fatalf("Record = %v, %v", first, added)
	}
	fake.Advance(time.Minute)
	again, added := registry.Record("127.0.0.1:5000")
	if added || !again.Equal(epoch) {
		t.Errorf("repeat Record = %v, %v; want original time, not added", again, added)
	}
	if seen, ok := registry.Seen("127.0.0.1:5000"); !ok || !seen.Equal(epoch) {
		t.Errorf("Seen = %v, %v", seen, ok)
	}
	if _, ok := registry.Seen("127.0.0.1:6000"); ok {
		t.Error("Seen reported an unknown endpoint")
	}
}

func TestRegistryUnboundedByDefault(t *testing.T) {
	fake := clock.Fake(epoch)
	registry := NewRegistry(RegistryPolicy{}, fake)
	for port := range 500 {
		registry.Record(endpointFor(port))
		fake.Advance(time.Hour)
	}
	if registry.Len() != 500 {
		t.Errorf("Len = %d, want 500", registry.Len())
	}
}

func TestRegistryMaxEntries(t *testing.T) {
	fake := clock.Fake(epoch)
	registry := NewRegistry(RegistryPolicy{MaxEntries: 2}, fake)
	for port := range 3 {
		registry.Record(endpointFor(port))
		fake.Advance(time.Second)
	}

	snapshot := registry.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snapshot))
	}
	if _, ok := snapshot[endpointFor(0)]; ok {
		t.Error("oldest endpoint survived eviction")
	}
}

func TestRegistryTTL(t *testing.T) {
	fake := clock.Fake(epoch)
	registry := NewRegistry(RegistryPolicy{TTL: time.Minute}, fake)

	registry.Record(endpointFor(1))
	fake.Advance(45 * time.Second)
	registry.Record(endpointFor(2))
	fake.Advance(30 * time.Second)

	// endpoint 1 is 75s old and hidden even before the next Record
	// evicts it.
	snapshot := registry.Snapshot()
	if _, ok := snapshot[endpointFor(1)]; ok {
		t.Error("expired endpoint in snapshot")
	}
	if _, ok := snapshot[endpointFor(2)]; !ok {
		t.Error("live endpoint missing from snapshot")
	}
	if _, ok := registry.Seen(endpointFor(1)); ok {
		t.Error("Seen reported an expired endpoint")
	}

	registry.Record(endpointFor(3))
	if registry.Len() != 2 {
		t.Errorf("Len after eviction = %d, want 2", registry.Len())
	}
}

func endpointFor(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", 40000+port)
}
