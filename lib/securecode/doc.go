// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package securecode derives short numeric codes from a shared secret
// and the current time bucket, so that a sender can prove knowledge of
// the secret without putting it on the wire.
//
// Both ends compute the bucket from their own wall clock:
//
//	bucket = floor(unix_seconds / window)
//
// No nonce is exchanged, so a message sent at a bucket edge may be
// checked against the next bucket by a receiver whose clock is slightly
// ahead. Each [Scheme] states how many preceding buckets it accepts.
//
// Two schemes exist:
//
//   - [SixDigit]: 6 digits, BLAKE3 keyed hash, configurable window
//     (default one hour), accepts the current or the previous bucket.
//   - [Legacy]: 4 digits, HKDF-SHA256 key with HMAC-SHA256 dynamic
//     truncation, fixed one-hour window, accepts the current bucket
//     only.
//
// A code is an authentication convenience for loopback demos, not a
// cryptographic credential: 10^6 possibilities per hour can be brute
// forced by any local process that can connect repeatedly.
package securecode
