// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/ipcdemo/lib/broker"
	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
)

const (
	// DefaultMaxMessages caps each tab.
	DefaultMaxMessages = 50

	// DefaultDecayAfter is how long a tab stays active after its last
	// entry.
	DefaultDecayAfter = 30 * time.Second
)

// Names of the two fixed tabs. Sender names equal to these are filed
// under a prefixed tab name instead.
const (
	ConnectionsTab = "connections"
	RejectedTab    = "rejected"
)

// TabKind identifies what a tab collects.
type TabKind int

const (
	KindSender TabKind = iota
	KindRejected
	KindConnections
)

func (k TabKind) String() string {
	switch k {
	case KindSender:
		return "sender"
	case KindRejected:
		return "rejected"
	case KindConnections:
		return "connections"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Verifier checks a secure code. *securecode.Generator satisfies it.
type Verifier interface {
	Verify(candidate string) bool
}

// History lists the endpoints a broker has accepted. *broker.Broker
// satisfies it.
type History interface {
	ConnectionHistory() map[string]time.Time
}

// Config configures a Board.
type Config struct {
	// Verifier checks every message. Required.
	Verifier Verifier

	// History feeds the connections tab. Nil leaves it empty.
	History History

	// MaxMessages caps each tab. Default: 50.
	MaxMessages int

	// DecayAfter resets a tab's activity after this much idle time.
	// Default: 30s.
	DecayAfter time.Duration

	// AllowSenders, when non-empty, drops messages from any other
	// sender before verification.
	AllowSenders []string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Entry is one line in a tab.
type Entry struct {
	ID string

	// Number is the board-wide receipt counter at the time of entry.
	// Zero for restored and connection entries.
	Number uint64

	Sender   string
	Type     string
	Payload  string
	SentAt   string
	Endpoint string

	ReceivedAt time.Time

	// Reason explains a rejected entry.
	Reason string
}

// Tab is a snapshot of one tab.
type Tab struct {
	Name     string
	Kind     TabKind
	Entries  []Entry
	Activity int
	Updated  time.Time
}

type tab struct {
	name     string
	kind     TabKind
	entries  []Entry
	activity int
	updated  time.Time
}

// Board files broker events into tabs. It implements broker.Observer
// and is safe for concurrent use.
type Board struct {
	verifier    Verifier
	history     History
	maxMessages int
	decayAfter  time.Duration
	allow       map[string]bool
	clock       clock.Clock
	logger      *slog.Logger

	changes chan struct{}

	mu        sync.Mutex
	tabs      map[string]*tab
	order     []string
	endpoints map[string]bool
	received  uint64
	dropped   uint64
}

var _ broker.Observer = (*Board)(nil)

// New returns an empty Board.
func New(config Config) (*Board, error) {
	if config.Verifier == nil {
		return nil, fmt.Errorf("inbox: Verifier is required")
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultMaxMessages
	}
	if config.DecayAfter <= 0 {
		config.DecayAfter = DefaultDecayAfter
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	var allow map[string]bool
	if len(config.AllowSenders) > 0 {
		allow = make(map[string]bool, len(config.AllowSenders))
		for _, name := range config.AllowSenders {
			allow[name] = true
		}
	}
	return &Board{
		verifier:    config.Verifier,
		history:     config.History,
		maxMessages: config.MaxMessages,
		decayAfter:  config.DecayAfter,
		allow:       allow,
		clock:       config.Clock,
		logger:      config.Logger,
		changes:     make(chan struct{}, 1),
		tabs:        make(map[string]*tab),
		endpoints:   make(map[string]bool),
	}, nil
}

// LineReceived adds any endpoints the broker has seen for the first
// time to the connections tab.
func (b *Board) LineReceived(event broker.Event) {
	if b.history == nil {
		return
	}
	snapshot := b.history.ConnectionHistory()
	now := b.clock.Now()

	b.mu.Lock()
	type seen struct {
		endpoint string
		at       time.Time
	}
	var fresh []seen
	for endpoint, at := range snapshot {
		if !b.endpoints[endpoint] {
			b.endpoints[endpoint] = true
			fresh = append(fresh, seen{endpoint, at})
		}
	}
	slices.SortFunc(fresh, func(x, y seen) int {
		if c := x.at.Compare(y.at); c != 0 {
			return c
		}
		return cmp.Compare(x.endpoint, y.endpoint)
	})
	for _, item := range fresh {
		b.addLocked(ConnectionsTab, KindConnections, Entry{
			ID:         uuid.NewString(),
			Endpoint:   item.endpoint,
			Payload:    "first connection at " + item.at.Format(time.RFC3339),
			ReceivedAt: now,
		}, now)
	}
	b.mu.Unlock()

	if len(fresh) > 0 {
		b.notify()
	}
}

// MessageReceived verifies the message and files it under its sender
// or under the rejected tab.
func (b *Board) MessageReceived(event broker.Event) {
	message := event.Message
	if b.allow != nil && !b.allow[message.Sender] {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Warn("message from unlisted sender dropped",
			"sender", message.Sender,
			"endpoint", event.Endpoint,
		)
		return
	}

	now := b.clock.Now()
	entry := Entry{
		ID:         uuid.NewString(),
		Sender:     message.Sender,
		Type:       message.Type,
		Payload:    message.Payload,
		SentAt:     message.Time,
		Endpoint:   event.Endpoint,
		ReceivedAt: now,
	}

	b.mu.Lock()
	b.received++
	entry.Number = b.received
	if b.verifier.Verify(message.Secret) {
		b.addLocked(senderTab(message.Sender), KindSender, entry, now)
		b.mu.Unlock()
		b.logger.Info("message received",
			"number", entry.Number,
			"sender", entry.Sender,
			"type", entry.Type,
			"endpoint", entry.Endpoint,
		)
	} else {
		entry.Reason = ipcerr.Security("verify", "secure code rejected").Error()
		b.addLocked(RejectedTab, KindRejected, entry, now)
		b.mu.Unlock()
		b.logger.Warn("message rejected",
			"number", entry.Number,
			"sender", entry.Sender,
			"endpoint", entry.Endpoint,
		)
	}
	b.notify()
}

// ErrorOccurred files a broker error under the rejected tab.
func (b *Board) ErrorOccurred(event broker.Event) {
	now := b.clock.Now()
	entry := Entry{
		ID:         uuid.NewString(),
		Type:       string(ipcerr.ClassOf(event.Err)),
		Endpoint:   event.Endpoint,
		ReceivedAt: now,
	}
	if event.Err != nil {
		entry.Reason = event.Err.Error()
	}
	b.mu.Lock()
	b.addLocked(RejectedTab, KindRejected, entry, now)
	b.mu.Unlock()
	b.logger.Warn("broker error", "endpoint", event.Endpoint, "error", event.Err)
	b.notify()
}

// Changes receives a value after the board changes. Changes coalesce:
// a reader that falls behind sees one notification for many updates.
func (b *Board) Changes() <-chan struct{} { return b.changes }

// Received returns how many messages have passed the allow-list.
func (b *Board) Received() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

// Dropped returns how many messages the allow-list has dropped.
func (b *Board) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Tabs returns every tab in creation order.
func (b *Board) Tabs() []Tab {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	tabs := make([]Tab, 0, len(b.order))
	for _, name := range b.order {
		tabs = append(tabs, b.snapshotLocked(b.tabs[name], now))
	}
	return tabs
}

// Tab returns the named tab.
func (b *Board) Tab(name string) (Tab, bool) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.tabs[name]
	if !ok {
		return Tab{}, false
	}
	return b.snapshotLocked(current, now), true
}

// CloseTab discards the named tab. The next entry for it creates a
// fresh tab at the end of the order.
func (b *Board) CloseTab(name string) bool {
	b.mu.Lock()
	if _, ok := b.tabs[name]; !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.tabs, name)
	b.order = slices.DeleteFunc(b.order, func(existing string) bool { return existing == name })
	b.mu.Unlock()
	b.notify()
	return true
}

func (b *Board) snapshotLocked(current *tab, now time.Time) Tab {
	if current.activity > 0 && now.Sub(current.updated) >= b.decayAfter {
		current.activity = 0
	}
	return Tab{
		Name:     current.name,
		Kind:     current.kind,
		Entries:  slices.Clone(current.entries),
		Activity: current.activity,
		Updated:  current.updated,
	}
}

// addLocked prepends entry to the named tab, creating it if needed and
// evicting the oldest entry past the cap.
func (b *Board) addLocked(name string, kind TabKind, entry Entry, now time.Time) {
	current, ok := b.tabs[name]
	if !ok {
		current = &tab{name: name, kind: kind}
		b.tabs[name] = current
		b.order = append(b.order, name)
	}
	current.entries = slices.Insert(current.entries, 0, entry)
	if len(current.entries) > b.maxMessages {
		clear(current.entries[b.maxMessages:])
		current.entries = current.entries[:b.maxMessages]
	}
	if now.Sub(current.updated) >= b.decayAfter {
		current.activity = 0
	}
	current.activity++
	current.updated = now
}

func (b *Board) notify() {
	select {
	case b.changes <- struct{}{}:
	default:
	}
}

// senderTab maps a sender to its tab name, keeping sender tabs apart
// from the fixed ones.
func senderTab(sender string) string {
	switch sender {
	case ConnectionsTab, RejectedTab:
		return "sender:" + sender
	case "":
		return "sender:(anonymous)"
	default:
		return sender
	}
}
