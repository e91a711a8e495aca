// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messagelog saves the subscriber's accepted messages on
// shutdown and reloads the recent ones on the next start.
//
// A log file is a CBOR sequence (see lib/codec): one header item
// followed by one item per [Record], oldest first. The file name's
// extension selects compression: ".zst" for zstd, ".lz4" for the LZ4
// frame format, anything else for none. Files are replaced atomically
// by writing a temporary sibling and renaming it over the target.
package messagelog
