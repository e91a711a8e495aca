// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securecode

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// ErrEmptySecret is returned by Generate when the shared secret is
// empty.
var ErrEmptySecret = errors.New("securecode: shared secret is empty")

// DefaultWindow is the rotation window of both schemes unless
// configured otherwise.
const DefaultWindow = time.Hour

// Scheme names accepted by ParseScheme.
const (
	NameSixDigit = "code6"
	NameLegacy   = "code4"
)

// Key-derivation contexts. Changing either invalidates every code
// issued under that scheme.
const (
	sixDigitContext = "ipcdemo 2026-01 secure code v6"
	legacyInfo      = "ipcdemo secure code v4"
)

// Scheme is one code derivation. The zero value is not usable; build
// schemes with SixDigit, Legacy, or ParseScheme.
type Scheme struct {
	// Name is the scheme's configuration name.
	Name string

	// Digits is the fixed width of the decimal code.
	Digits int

	// Window is the bucket width.
	Window time.Duration

	// Grace is how many buckets before the current one Verify also
	// accepts.
	Grace int

	// derive maps (secret, bucket) to a uniformly distributed integer.
	derive func(secret []byte, bucket int64) uint64
}

// SixDigit returns the 6-digit scheme with the given window, truncated
// to whole seconds. A window under one second selects DefaultWindow.
func SixDigit(window time.Duration) Scheme {
	window = window.Truncate(time.Second)
	if window < time.Second {
		window = DefaultWindow
	}
	return Scheme{
		Name:   NameSixDigit,
		Digits: 6,
		Window: window,
		Grace:  1,
		derive: deriveBLAKE3,
	}
}

// Legacy returns the 4-digit clock-hour scheme. Its window is fixed and
// it grants no grace bucket.
func Legacy() Scheme {
	return Scheme{
		Name:   NameLegacy,
		Digits: 4,
		Window: time.Hour,
		Grace:  0,
		derive: deriveHMAC,
	}
}

// ParseScheme resolves a configuration name. The window applies to the
// 6-digit scheme only; the legacy scheme rejects any window other than
// zero or one hour.
func ParseScheme(name string, window time.Duration) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSixDigit:
		return SixDigit(window), nil
	case NameLegacy:
		if window != 0 && window != time.Hour {
			return Scheme{}, fmt.Errorf("securecode: %s has a fixed one-hour window, got %s", NameLegacy, window)
		}
		return Legacy(), nil
	default:
		return Scheme{}, fmt.Errorf("securecode: unknown scheme %q (want %s or %s)", name, NameSixDigit, NameLegacy)
	}
}

// Bucket returns the time bucket containing at.
func (s Scheme) Bucket(at time.Time) int64 {
	seconds := int64(s.Window / time.Second)
	unix := at.Unix()
	bucket := unix / seconds
	if unix < 0 && unix%seconds != 0 {
		bucket--
	}
	return bucket
}

// Remaining returns how long the code valid at `at` keeps being
// generated before the bucket rolls over.
func (s Scheme) Remaining(at time.Time) time.Duration {
	next := time.Unix((s.Bucket(at)+1)*int64(s.Window/time.Second), 0)
	return next.Sub(at)
}

// Generate returns the code for the bucket containing at.
func (s Scheme) Generate(secret []byte, at time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	return s.format(s.derive(secret, s.Bucket(at))), nil
}

// Verify reports whether candidate matches the code for at's bucket or
// one of the Grace buckets before it. An empty secret or candidate is
// rejected without computing anything.
func (s Scheme) Verify(candidate string, secret []byte, at time.Time) bool {
	if len(secret) == 0 || candidate == "" || len(candidate) != s.Digits {
		return false
	}
	bucket := s.Bucket(at)
	matched := 0
	for offset := 0; offset <= s.Grace; offset++ {
		expected := s.format(s.derive(secret, bucket-int64(offset)))
		// Evaluate every bucket so timing does not reveal which matched.
		matched |= subtle.ConstantTimeCompare([]byte(expected), []byte(candidate))
	}
	return matched == 1
}

func (s Scheme) format(value uint64) string {
	modulus := uint64(1)
	for range s.Digits {
		modulus *= 10
	}
	return fmt.Sprintf("%0*d", s.Digits, value%modulus)
}

func bucketBytes(bucket int64) []byte {
	var encoded [8]byte
	binary.BigEndian.PutUint64(encoded[:], uint64(bucket))
	return encoded[:]
}

// deriveBLAKE3 keys BLAKE3 with a context-derived key and hashes the
// bucket. The first 8 bytes of output are the code source.
func deriveBLAKE3(secret []byte, bucket int64) uint64 {
	var key [32]byte
	blake3.DeriveKey(sixDigitContext, secret, key[:])
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("securecode: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(bucketBytes(bucket))
	sum := hasher.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// deriveHMAC expands the secret with HKDF-SHA256 and applies HOTP-style
// dynamic truncation (RFC 4226 §5.3) to HMAC-SHA256 of the bucket.
func deriveHMAC(secret []byte, bucket int64) uint64 {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(legacyInfo)), key); err != nil {
		panic("securecode: HKDF expansion failed: " + err.Error())
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(bucketBytes(bucket))
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	truncated := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return uint64(truncated)
}
