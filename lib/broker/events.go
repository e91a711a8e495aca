// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/ipcmsg"
)

// DefaultSubscriptionBuffer is the channel capacity Subscribe uses for
// a non-positive buffer argument.
const DefaultSubscriptionBuffer = 256

// EventKind distinguishes the three broker event streams.
type EventKind int

const (
	// EventLine carries a line as read, before decoding.
	EventLine EventKind = iota + 1

	// EventMessage carries a decoded message.
	EventMessage

	// EventError carries a transport, io, or protocol failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLine:
		return "line"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one broker notification.
type Event struct {
	Kind EventKind

	// Endpoint is the client address the event concerns. Empty for
	// accept-loop errors.
	Endpoint string

	// At is when the broker produced the event.
	At time.Time

	// Line is set for EventLine, without its terminator.
	Line string

	// Message is set for EventMessage.
	Message ipcmsg.Message

	// Err is set for EventError. It is always an *ipcerr.Error.
	Err error
}

// Observer receives broker events. Observe calls its methods from a
// single goroutine per observer.
type Observer interface {
	LineReceived(event Event)
	MessageReceived(event Event)
	ErrorOccurred(event Event)
}

// ObserverFuncs adapts functions to Observer. Nil fields ignore their
// events.
type ObserverFuncs struct {
	OnLine    func(Event)
	OnMessage func(Event)
	OnError   func(Event)
}

func (o ObserverFuncs) LineReceived(event Event) {
	if o.OnLine != nil {
		o.OnLine(event)
	}
}

func (o ObserverFuncs) MessageReceived(event Event) {
	if o.OnMessage != nil {
		o.OnMessage(event)
	}
}

func (o ObserverFuncs) ErrorOccurred(event Event) {
	if o.OnError != nil {
		o.OnError(event)
	}
}

// Dispatch calls the observer method matching event's kind.
func Dispatch(observer Observer, event Event) {
	switch event.Kind {
	case EventLine:
		observer.LineReceived(event)
	case EventMessage:
		observer.MessageReceived(event)
	case EventError:
		observer.ErrorOccurred(event)
	}
}

// Subscription is a buffered stream of broker events. Delivery is
// lossless: a publisher whose event does not fit waits for room, for
// Close, or for the broker to stop.
type Subscription struct {
	hub    *hub
	events chan Event
	done   chan struct{}

	// mu is held for reading across a send and for writing to close
	// events, so a send never lands on a closed channel.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Events returns the event channel. It is closed by Close or when the
// broker is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close detaches the subscription and closes its channel once any
// publisher blocked on it has let go. Events already buffered stay
// readable. It is idempotent.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// deliver sends event, waiting for buffer room. It reports false when
// the subscription closed or ctx ended first.
func (s *Subscription) deliver(ctx context.Context, event Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	// A ready buffer wins over a canceled ctx.
	select {
	case s.events <- event:
		return true
	default:
	}
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Subscription) shut() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

// hub fans events out to subscriptions. Each publisher waits on each
// subscriber in turn, so a slow subscriber slows the connections that
// feed it and nothing else.
type hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	// onAbandon is called once per delivery given up on.
	onAbandon func()
}

func newHub(onAbandon func()) *hub {
	return &hub{subs: make(map[*Subscription]struct{}), onAbandon: onAbandon}
}

func (h *hub) subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	subscription := &Subscription{
		hub:    h,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	closed := h.closed
	if !closed {
		h.subs[subscription] = struct{}{}
	}
	h.mu.Unlock()
	if closed {
		subscription.shut()
	}
	return subscription
}

// publish delivers event to every current subscription, blocking until
// each has taken it, closed, or ctx is done.
func (h *hub) publish(ctx context.Context, event Event) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for subscription := range h.subs {
		targets = append(targets, subscription)
	}
	h.mu.RUnlock()

	for _, subscription := range targets {
		if !subscription.deliver(ctx, event) {
			h.onAbandon()
		}
	}
}

func (h *hub) remove(subscription *Subscription) {
	h.mu.Lock()
	delete(h.subs, subscription)
	h.mu.Unlock()
	subscription.shut()
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*Subscription, 0, len(h.subs))
	for subscription := range h.subs {
		targets = append(targets, subscription)
		delete(h.subs, subscription)
	}
	h.mu.Unlock()
	for _, subscription := range targets {
		subscription.shut()
	}
}
