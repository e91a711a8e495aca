// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the one CBOR configuration used for on-disk state,
// currently the message log.
//
// Encoding is Core Deterministic (RFC 8949 §4.2) so the same value
// always produces the same bytes, and time.Time values are written as
// tag 0 RFC 3339 strings with nanoseconds so they survive a round trip
// with their instant intact. Types written to disk use `cbor` struct
// tags.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For CBOR sequences (one item after another in a file):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
package codec
