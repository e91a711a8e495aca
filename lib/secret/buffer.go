// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrEmpty is returned when a secret would have zero length.
var ErrEmpty = errors.New("secret: empty")

// Buffer is a fixed-size secret in locked, non-dumpable memory outside
// the Go heap. Do not copy a Buffer; pass the pointer.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// New maps a zero-filled buffer of size bytes. The caller owns the
// buffer and must Close it.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap %d bytes: %w", size, err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock %d bytes: %w", size, err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return &Buffer{data: data}, nil
}

// NewFromBytes moves source into a new Buffer. source is zeroed on
// return whether or not the allocation succeeded.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, ErrEmpty
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	return buffer, nil
}

// Bytes returns the secret. The slice aliases the locked mapping and is
// invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Len returns the secret's length, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Equal compares the secret with other in constant time.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return subtle.ConstantTimeCompare(b.data, other) == 1
}

// Close zeroes and releases the mapping. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)

	// The kernel reclaims the mapping at exit regardless; report the
	// first failure only.
	var err error
	if unlockErr := unix.Munlock(b.data); unlockErr != nil {
		err = fmt.Errorf("secret: munlock: %w", unlockErr)
	}
	if unmapErr := unix.Munmap(b.data); unmapErr != nil && err == nil {
		err = fmt.Errorf("secret: munmap: %w", unmapErr)
	}
	b.data = nil
	return err
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
