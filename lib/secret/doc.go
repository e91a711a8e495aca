// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the broker's shared secret in memory that the Go
// runtime never sees.
//
// [Buffer] maps anonymous memory with mmap, locks it with mlock so it
// cannot be swapped, and marks it MADV_DONTDUMP. Close zeroes and
// unmaps it; any later access panics.
//
// The secret normally comes from a file. [ReadFromPath] loads it (or
// stdin when the path is "-") with surrounding whitespace trimmed, and
// [Watch] reloads it whenever the file is rewritten so a long-running
// broker picks up a rotated secret without a restart.
//
// *Buffer satisfies securecode.Source.
package secret
