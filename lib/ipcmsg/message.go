// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipcmsg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
)

// DefaultMaxLineBytes bounds a single message line. Lines longer than
// this are rejected as protocol errors without being buffered whole.
const DefaultMaxLineBytes = 1 << 20

// TypeData is the message type the demo sender uses for payload
// messages. The broker does not interpret Type.
const TypeData = "data"

// Message is one IPC message. Field order is the wire order.
type Message struct {
	// Type is a free-form message kind chosen by the sender. Required.
	Type string `json:"Type"`

	// Payload is the message body.
	Payload string `json:"Payload"`

	// Time is the sender's timestamp in RFC 3339 form, stamped when
	// the message is serialized.
	Time string `json:"Time"`

	// Sender identifies the sending process; defaults to the sender's
	// host name.
	Sender string `json:"Sender"`

	// Secret is the secure code derived from the shared secret.
	Secret string `json:"Secret"`
}

// Stamp formats t as a wire timestamp (UTC, second precision).
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses a wire timestamp. RFC 3339 with or without
// fractional seconds is accepted, as is a zone-less form that older
// senders produced, which is read as UTC.
func ParseTime(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing message time %q: %w", value, err)
	}
	return parsed, nil
}

// Encode returns the wire form of m: compact JSON followed by "\n".
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return append(data, '\n'), nil
}

// Format renders m as indented JSON for logs and displays. The Secret
// field is redacted.
func Format(m Message) string {
	if m.Secret != "" {
		m.Secret = "<redacted>"
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", m)
	}
	return string(data)
}

// String implements fmt.Stringer using Format.
func (m Message) String() string { return Format(m) }

// Decode parses one wire line. A trailing "\n" or "\r\n" is ignored.
// Failures are classified as ipcerr.ClassProtocol.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimRight(line, "\r\n")
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Message{}, ipcerr.Protocol("decode", "empty line")
	}
	if trimmed[0] != '{' {
		return Message{}, ipcerr.Protocol("decode", "expected a JSON object, got %q", preview(trimmed))
	}

	var message Message
	if err := json.Unmarshal(trimmed, &message); err != nil {
		return Message{}, ipcerr.Protocol("decode", "malformed message: %w", err)
	}
	if strings.TrimSpace(message.Type) == "" {
		return Message{}, ipcerr.Protocol("decode", "missing required field %q", "Type")
	}
	return message, nil
}

// preview shortens data for inclusion in error messages.
func preview(data []byte) string {
	const limit = 32
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
