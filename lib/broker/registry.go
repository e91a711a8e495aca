// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"maps"
	"sync"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
)

// RegistryPolicy bounds the connection history. The zero value never
// evicts, so the history grows by one entry per distinct client
// endpoint for the broker's whole lifetime.
type RegistryPolicy struct {
	// MaxEntries evicts the earliest-recorded endpoints beyond this
	// count. Zero means no limit.
	MaxEntries int

	// TTL evicts endpoints first seen longer ago than this. Zero means
	// entries never expire.
	TTL time.Duration
}

// Registry records the first time each client endpoint connected.
// The accept loop is its only writer.
type Registry struct {
	policy RegistryPolicy
	clock  clock.Clock

	mu        sync.RWMutex
	firstSeen map[string]time.Time
	// order holds endpoints in recording order for eviction.
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry(policy RegistryPolicy, clk clock.Clock) *Registry {
	return &Registry{
		policy:    policy,
		clock:     clk,
		firstSeen: make(map[string]time.Time),
	}
}

// Record notes endpoint if it is new and returns its first-seen time.
// added is false when the endpoint was already present.
func (r *Registry) Record(endpoint string) (firstSeen time.Time, added bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked(now)
	if existing, ok := r.firstSeen[endpoint]; ok {
		return existing, false
	}
	r.firstSeen[endpoint] = now
	r.order = append(r.order, endpoint)
	if r.policy.MaxEntries > 0 {
		for len(r.order) > r.policy.MaxEntries {
			r.dropOldestLocked()
		}
	}
	return now, true
}

// Seen reports when endpoint first connected.
func (r *Registry) Seen(endpoint string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	firstSeen, ok := r.firstSeen[endpoint]
	if ok && r.expired(firstSeen, r.clock.Now()) {
		return time.Time{}, false
	}
	return firstSeen, ok
}

// Snapshot returns a copy of the history. Later connections do not
// appear in it.
func (r *Registry) Snapshot() map[string]time.Time {
	now := r.clock.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := maps.Clone(r.firstSeen)
	if snapshot == nil {
		snapshot = make(map[string]time.Time)
	}
	for endpoint, firstSeen := range snapshot {
		if r.expired(firstSeen, now) {
			delete(snapshot, endpoint)
		}
	}
	return snapshot
}

// Len returns the number of recorded endpoints, including any expired
// ones not yet evicted.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.firstSeen)
}

func (r *Registry) expired(firstSeen, now time.Time) bool {
	return r.policy.TTL > 0 && now.Sub(firstSeen) > r.policy.TTL
}

// evictLocked drops expired entries from the front of order. Entries
// are appended with a non-decreasing clock, so the front is oldest.
func (r *Registry) evictLocked(now time.Time) {
	if r.policy.TTL <= 0 {
		return
	}
	for len(r.order) > 0 && r.expired(r.firstSeen[r.order[0]], now) {
		r.dropOldestLocked()
	}
}

func (r *Registry) dropOldestLocked() {
	delete(r.firstSeen, r.order[0])
	r.order[0] = ""
	r.order = r.order[1:]
}
