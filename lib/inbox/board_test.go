// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/broker"
	"github.com/bureau-foundation/ipcdemo/lib/clock"
	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
	"github.com/bureau-foundation/ipcdemo/lib/ipcmsg"
	"github.com/bureau-foundation/ipcdemo/lib/securecode"
	"github.com/bureau-foundation/ipcdemo/lib/testutil"
)

var epoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// codeVerifier accepts exactly one code.
type codeVerifier string

func (v codeVerifier) Verify(candidate string) bool { return candidate == string(v) }

// staticHistory is a fixed connection history.
type staticHistory map[string]time.Time

func (h staticHistory) ConnectionHistory() map[string]time.Time {
	copied := make(map[string]time.Time, len(h))
	for endpoint, at := range h {
		copied[endpoint] = at
	}
	return copied
}

func newBoard(t *testing.T, config Config) (*Board, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	if config.Verifier == nil {
		config.Verifier = codeVerifier("123456")
	}
	config.Clock = fake
	board, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return board, fake
}

func message(sender, payload, code string) broker.Event {
	return broker.Event{
		Kind:     broker.EventMessage,
		Endpoint: "127.0.0.1:50000",
		Message: ipcmsg.Message{
			Type:    ipcmsg.TypeData,
			Payload: payload,
			Time:    ipcmsg.Stamp(epoch),
			Sender:  sender,
			Secret:  code,
		},
	}
}

func requireTab(t *testing.T, board *Board, name string) Tab {
	t.Helper()
	tab, ok := board.Tab(name)
	if !ok {
		t.Fatalf("tab %q does not exist", name)
	}
	return tab
}

func TestNewRequiresVerifier(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New accepted a config without a verifier")
	}
}

func TestVerifiedMessagesGoToSenderTabs(t *testing.T) {
	board, _ := newBoard(t, Config{})

	board.MessageReceived(message("alpha", "one", "123456"))
	board.MessageReceived(message("beta", "two", "123456"))
	board.MessageReceived(message("alpha", "three", "123456"))

	alpha := requireTab(t, board, "alpha")
	if alpha.Kind != KindSender || len(alpha.Entries) != 2 {
		t.Fatalf("alpha tab = %+v", alpha)
	}
	if alpha.Entries[0].Payload != "three" || alpha.Entries[1].Payload != "one" {
		t.Errorf("alpha entries not newest first: %q, %q", alpha.Entries[0].Payload, alpha.Entries[1].Payload)
	}
	if alpha.Entries[0].Number != 3 || alpha.Entries[1].Number != 1 {
		t.Errorf("entry numbers = %d, %d; want 3, 1", alpha.Entries[0].Number, alpha.Entries[1].Number)
	}
	if alpha.Entries[0].ID == "" || alpha.Entries[0].ID == alpha.Entries[1].ID {
		t.Errorf("entry IDs not unique: %q, %q", alpha.Entries[0].ID, alpha.Entries[1].ID)
	}
	if board.Received() != 3 {
		t.Errorf("Received() = %d, want 3", board.Received())
	}

	var names []string
	for _, tab := range board.Tabs() {
		names = append(names, tab.Name)
	}
	if strings.Join(names, ",") != "alpha,beta" {
		t.Errorf("tab order = %v", names)
	}
}

func TestFailedVerificationGoesToRejected(t *testing.T) {
	board, _ := newBoard(t, Config{})

	board.MessageReceived(message("alpha", "forged", "000000"))

	if _, ok := board.Tab("alpha"); ok {
		t.Error("rejected message created a sender tab")
	}
	rejected := requireTab(t, board, RejectedTab)
	if rejected.Kind != KindRejected || len(rejected.Entries) != 1 {
		t.Fatalf("rejected tab = %+v", rejected)
	}
	entry := rejected.Entries[0]
	if entry.Sender != "alpha" || !strings.Contains(entry.Reason, "security") {
		t.Errorf("rejected entry = %+v", entry)
	}
}

func TestVerifiesWithSecureCodeGenerator(t *testing.T) {
	fake := clock.Fake(epoch)
	generator := securecode.NewGenerator(securecode.SixDigit(0), securecode.StaticSecret("test-secret"), fake)
	board, err := New(Config{Verifier: generator, Clock: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	code, err := generator.Code()
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	board.MessageReceived(message("unit-test", "hello", code))

	tab := requireTab(t, board, "unit-test")
	if len(tab.Entries) != 1 || tab.Entries[0].Payload != "hello" {
		t.Errorf("unit-test tab = %+v", tab)
	}
}

func TestBrokerErrorsGoToRejected(t *testing.T) {
	board, _ := newBoard(t, Config{})
	board.ErrorOccurred(broker.Event{
		Kind:     broker.EventError,
		Endpoint: "127.0.0.1:50001",
		Err:      ipcerr.Protocol("decode", "invalid JSON"),
	})
	entry := requireTab(t, board, RejectedTab).Entries[0]
	if entry.Type != "protocol" || !strings.Contains(entry.Reason, "invalid JSON") {
		t.Errorf("error entry = %+v", entry)
	}
}

func TestAllowListDropsUnlistedSenders(t *testing.T) {
	board, _ := newBoard(t, Config{AllowSenders: []string{"alpha"}})

	board.MessageReceived(message("mallory", "hi", "123456"))
	board.MessageReceived(message("alpha", "hi", "123456"))

	if _, ok := board.Tab("mallory"); ok {
		t.Error("unlisted sender got a tab")
	}
	if _, ok := board.Tab(RejectedTab); ok {
		t.Error("unlisted sender was filed as rejected")
	}
	if board.Dropped() != 1 || board.Received() != 1 {
		t.Errorf("Dropped() = %d, Received() = %d", board.Dropped(), board.Received())
	}
}

func TestTabCapEvictsOldest(t *testing.T) {
	board, _ := newBoard(t, Config{MaxMessages: 3})
	for i := range 5 {
		board.MessageReceived(message("alpha", fmt.Sprintf("m%d", i), "123456"))
	}
	entries := requireTab(t, board, "alpha").Entries
	if len(entries) != 3 {
		t.Fatalf("tab holds %d entries, want 3", len(entries))
	}
	for i, want := range []string{"m4", "m3", "m2"} {
		if entries[i].Payload != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Payload, want)
		}
	}
}

func TestActivityDecays(t *testing.T) {
	board, fake := newBoard(t, Config{DecayAfter: 30 * time.Second})

	board.MessageReceived(message("alpha", "one", "123456"))
	fake.Advance(10 * time.Second)
	board.MessageReceived(message("alpha", "two", "123456"))
	if activity := requireTab(t, board, "alpha").Activity; activity != 2 {
		t.Fatalf("activity = %d, want 2", activity)
	}

	fake.Advance(29 * time.Second)
	if activity := requireTab(t, board, "alpha").Activity; activity != 2 {
		t.Fatalf("activity before decay = %d, want 2", activity)
	}

	fake.Advance(time.Second)
	if activity := requireTab(t, board, "alpha").Activity; activity != 0 {
		t.Fatalf("activity after decay = %d, want 0", activity)
	}

	board.MessageReceived(message("alpha", "three", "123456"))
	if activity := requireTab(t, board, "alpha").Activity; activity != 1 {
		t.Errorf("activity after new receipt = %d, want 1", activity)
	}
}

func TestConnectionsTabListsNewEndpointsOnce(t *testing.T) {
	history := staticHistory{
		"127.0.0.1:50002": epoch.Add(time.Second),
		"127.0.0.1:50001": epoch,
	}
	board, _ := newBoard(t, Config{History: history})

	board.LineReceived(broker.Event{Kind: broker.EventLine, Endpoint: "127.0.0.1:50001"})
	board.LineReceived(broker.Event{Kind: broker.EventLine, Endpoint: "127.0.0.1:50002"})

	entries := requireTab(t, board, ConnectionsTab).Entries
	if len(entries) != 2 {
		t.Fatalf("connections tab holds %d entries, want 2", len(entries))
	}
	// Newest first: the later first-seen time is on top.
	if entries[0].Endpoint != "127.0.0.1:50002" || entries[1].Endpoint != "127.0.0.1:50001" {
		t.Errorf("connection entries = %q, %q", entries[0].Endpoint, entries[1].Endpoint)
	}

	history["127.0.0.1:50003"] = epoch.Add(2 * time.Second)
	board.LineReceived(broker.Event{Kind: broker.EventLine, Endpoint: "127.0.0.1:50003"})
	if entries := requireTab(t, board, ConnectionsTab).Entries; len(entries) != 3 {
		t.Errorf("connections tab holds %d entries after a third endpoint, want 3", len(entries))
	}
}

func TestCloseTab(t *testing.T) {
	board, _ := newBoard(t, Config{})
	board.MessageReceived(message("alpha", "one", "123456"))
	board.MessageReceived(message("beta", "two", "123456"))

	if !board.CloseTab("alpha") {
		t.Fatal("CloseTab(alpha) = false")
	}
	if board.CloseTab("alpha") {
		t.Error("closing a closed tab reported success")
	}

	board.MessageReceived(message("alpha", "three", "123456"))
	tabs := board.Tabs()
	if len(tabs) != 2 || tabs[0].Name != "beta" || tabs[1].Name != "alpha" {
		t.Fatalf("tabs after reopen = %+v", tabs)
	}
	if len(tabs[1].Entries) != 1 {
		t.Errorf("reopened tab kept %d old entries", len(tabs[1].Entries)-1)
	}
}

func TestReservedSenderNames(t *testing.T) {
	board, _ := newBoard(t, Config{})
	board.MessageReceived(message(RejectedTab, "sneaky", "123456"))
	if _, ok := board.Tab(RejectedTab); ok {
		t.Error("sender named like the rejected tab was filed there")
	}
	if tab := requireTab(t, board, "sender:"+RejectedTab); tab.Kind != KindSender {
		t.Errorf("tab kind = %v", tab.Kind)
	}
}

func TestChangesNotifies(t *testing.T) {
	board, _ := newBoard(t, Config{})
	board.MessageReceived(message("alpha", "one", "123456"))
	board.MessageReceived(message("alpha", "two", "123456"))
	testutil.RequireReceive(t, board.Changes(), time.Second, "waiting for change notification")
	testutil.RequireNoReceive(t, board.Changes(), 10*time.Millisecond, "changes did not coalesce")
}

func TestSaveAndRestoreLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor.zst")
	board, fake := newBoard(t, Config{})
	board.MessageReceived(message("alpha", "one", "123456"))
	fake.Advance(time.Second)
	board.MessageReceived(message("beta", "two", "123456"))
	board.MessageReceived(message("alpha", "forged", "999999"))

	if err := board.SaveLog(path); err != nil {
		t.Fatalf("SaveLog: %v", err)
	}

	restored, fake2 := newBoard(t, Config{})
	fake2.Advance(time.Hour)
	count, err := restored.RestoreLog(path, 0)
	if err != nil {
		t.Fatalf("RestoreLog: %v", err)
	}
	if count != 2 {
		t.Fatalf("restored %d records, want 2", count)
	}
	alpha := requireTab(t, restored, "alpha")
	if len(alpha.Entries) != 1 || alpha.Entries[0].Payload != "one" {
		t.Errorf("alpha tab = %+v", alpha)
	}
	if alpha.Entries[0].Number != 0 || restored.Received() != 0 {
		t.Error("restored records advanced the receipt counter")
	}
	if _, ok := restored.Tab(RejectedTab); ok {
		t.Error("rejected messages were saved")
	}
}

func TestRestoreLogMissingFile(t *testing.T) {
	board, _ := newBoard(t, Config{})
	count, err := board.RestoreLog(filepath.Join(t.TempDir(), "absent.cbor"), 0)
	if err != nil || count != 0 {
		t.Errorf("RestoreLog on a missing file = %d, %v", count, err)
	}
}

func TestRestoreLogSkipsStaleLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor")
	board, _ := newBoard(t, Config{})
	board.MessageReceived(message("alpha", "one", "123456"))
	if err := board.SaveLog(path); err != nil {
		t.Fatalf("SaveLog: %v", err)
	}

	later, fake := newBoard(t, Config{})
	fake.Advance(72 * time.Hour)
	count, err := later.RestoreLog(path, 48*time.Hour)
	if err != nil {
		t.Fatalf("RestoreLog: %v", err)
	}
	if count != 0 {
		t.Errorf("restored %d records from a stale log", count)
	}
}

func TestObservesBroker(t *testing.T) {
	fake := clock.Fake(epoch)
	b := broker.New(broker.Config{Port: broker.EphemeralPort, Clock: fake})
	board, err := New(Config{Verifier: codeVerifier("123456"), History: b, Clock: fake})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop := b.Observe(board)
	defer stop()
	if err := b.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	line, err := ipcmsg.Encode(message("unit-test", "hello", "123456").Message)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	conn := dialBroker(t, b)
	if _, err := conn.Write(line); err != nil {
		t.Fatalf("writing: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, haveSender := board.Tab("unit-test")
		_, haveConnections := board.Tab(ConnectionsTab)
		if haveSender && haveConnections {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("board never filed the message; tabs = %+v", board.Tabs())
		}
		testutil.RequireReceive(t, board.Changes(), 5*time.Second, "waiting for board change")
	}
	if entries := requireTab(t, board, ConnectionsTab).Entries; entries[0].Endpoint != conn.LocalAddr().String() {
		t.Errorf("connections entry = %q, want %q", entries[0].Endpoint, conn.LocalAddr().String())
	}
}

func dialBroker(t *testing.T, b *broker.Broker) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", b.Addr().String(), 5*time.Second)
	if err != nil {
		t.Fatalf("dialing broker: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
