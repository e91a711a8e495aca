// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"
)

// GlowDuration is how long a tab glows after receiving an entry. The
// glow starts at 1.0 and falls linearly to 0.0.
const GlowDuration = 3 * time.Second

// GlowTickInterval is the re-render interval while any tab glows.
const GlowTickInterval = 100 * time.Millisecond

// GlowKind selects the glow color.
type GlowKind int

const (
	GlowAccepted GlowKind = iota
	GlowRejected
)

type glow struct {
	lit  time.Time
	kind GlowKind
}

// GlowTracker remembers when each tab last received an entry. It is
// not safe for concurrent use; the bubbletea model owns it.
type GlowTracker struct {
	tabs map[string]glow
}

// NewGlowTracker returns an empty tracker.
func NewGlowTracker() *GlowTracker {
	return &GlowTracker{tabs: make(map[string]glow)}
}

// Light starts or restarts the glow for a tab.
func (tracker *GlowTracker) Light(tab string, kind GlowKind, now time.Time) {
	tracker.tabs[tab] = glow{lit: now, kind: kind}
}

// Intensity returns the tab's glow at now, from 1.0 just after Light
// down to 0.0 once GlowDuration has passed.
func (tracker *GlowTracker) Intensity(tab string, now time.Time) float64 {
	entry, ok := tracker.tabs[tab]
	if !ok {
		return 0
	}
	elapsed := now.Sub(entry.lit)
	if elapsed >= GlowDuration || elapsed < 0 {
		return 0
	}
	return 1 - float64(elapsed)/float64(GlowDuration)
}

// Kind returns the glow kind last set for a tab.
func (tracker *GlowTracker) Kind(tab string) GlowKind {
	return tracker.tabs[tab].kind
}

// Active reports whether any tab still glows, dropping the ones that
// have gone dark.
func (tracker *GlowTracker) Active(now time.Time) bool {
	active := false
	for tab, entry := range tracker.tabs {
		if now.Sub(entry.lit) < GlowDuration {
			active = true
			continue
		}
		delete(tracker.tabs, tab)
	}
	return active
}
