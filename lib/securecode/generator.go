// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securecode

import (
	"sync"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
)

// Source supplies the shared secret. *secret.Buffer satisfies it.
type Source interface {
	Bytes() []byte
}

// StaticSecret is a Source over an ordinary byte slice, for tests and
// for callers that do not need locked memory.
type StaticSecret []byte

// Bytes returns the secret.
func (s StaticSecret) Bytes() []byte { return s }

// Generator binds a scheme, a secret source, and a clock. It is safe for
// concurrent use, and its source can be replaced while in use when the
// secret file is rotated.
type Generator struct {
	scheme Scheme
	clock  clock.Clock

	mu     sync.RWMutex
	source Source
}

// NewGenerator returns a Generator reading the secret from source.
func NewGenerator(scheme Scheme, source Source, clk clock.Clock) *Generator {
	return &Generator{scheme: scheme, source: source, clock: clk}
}

// Scheme returns the generator's scheme.
func (g *Generator) Scheme() Scheme { return g.scheme }

// Code returns the code for the current bucket.
func (g *Generator) Code() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scheme.Generate(g.secretLocked(), g.clock.Now())
}

// Verify checks candidate against the current secret and time.
func (g *Generator) Verify(candidate string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scheme.Verify(candidate, g.secretLocked(), g.clock.Now())
}

// Remaining returns the time left in the current bucket.
func (g *Generator) Remaining() time.Duration {
	return g.scheme.Remaining(g.clock.Now())
}

// SetSource swaps the secret source and returns the previous one so the
// caller can release it.
func (g *Generator) SetSource(source Source) Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	previous := g.source
	g.source = source
	return previous
}

func (g *Generator) secretLocked() []byte {
	if g.source == nil {
		return nil
	}
	return g.source.Bytes()
}
