// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

type sampleEntry struct {
	Sender     string    `cbor:"sender"`
	Payload    string    `cbor:"payload,omitempty"`
	ReceivedAt time.Time `cbor:"received_at"`
	Count      int       `cbor:"count"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleEntry{
		Sender:     "workstation",
		Payload:    "hello",
		ReceivedAt: time.Date(2026, 1, 15, 12, 30, 0, 123456789, time.UTC),
		Count:      3,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.ReceivedAt.Equal(original.ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", decoded.ReceivedAt, original.ReceivedAt)
	}
	decoded.ReceivedAt = original.ReceivedAt
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	entry := sampleEntry{Sender: "a", Count: 7, ReceivedAt: time.Unix(1700000000, 0).UTC()}
	first, err := Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("encodings differ: %x != %x", first, second)
	}

	// Map keys are sorted regardless of insertion order.
	left, _ := Marshal(map[string]int{"b": 2, "a": 1})
	right, _ := Marshal(map[string]int{"a": 1, "b": 2})
	if !bytes.Equal(left, right) {
		t.Errorf("map encodings differ: %x != %x", left, right)
	}
}

func TestSequenceRoundtrip(t *testing.T) {
	entries := []sampleEntry{
		{Sender: "a", Count: 1},
		{Sender: "b", Payload: "two", Count: 2},
		{Sender: "c", Count: 3},
	}

	var stream bytes.Buffer
	encoder := NewEncoder(&stream)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&stream)
	for index, want := range entries {
		var got sampleEntry
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode item %d: %v", index, err)
		}
		if got.Sender != want.Sender || got.Payload != want.Payload || got.Count != want.Count {
			t.Errorf("item %d = %+v, want %+v", index, got, want)
		}
	}
	var extra sampleEntry
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end error = %v, want io.EOF", err)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var entry sampleEntry
	if err := Unmarshal([]byte{0xff, 0x00}, &entry); err == nil {
		t.Fatal("Unmarshal accepted invalid CBOR")
	}
}
