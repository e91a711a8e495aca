// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/ipcdemo/lib/codec"
)

// formatVersion is written in every header. Load rejects other
// versions.
const formatVersion = 1

// DefaultMaxAge is how old a saved message may be and still be
// reloaded.
const DefaultMaxAge = 48 * time.Hour

type header struct {
	Version int       `cbor:"version"`
	SavedAt time.Time `cbor:"saved_at"`
	Count   int       `cbor:"count"`
}

// Record is one accepted message as the subscriber saw it.
type Record struct {
	ID         string    `cbor:"id"`
	Sender     string    `cbor:"sender"`
	Type       string    `cbor:"type"`
	Payload    string    `cbor:"payload"`
	SentAt     string    `cbor:"sent_at,omitempty"`
	Endpoint   string    `cbor:"endpoint,omitempty"`
	ReceivedAt time.Time `cbor:"received_at"`
}

// Save writes records, oldest first, to path, replacing any existing
// file.
func Save(path string, records []Record, savedAt time.Time) error {
	directory := filepath.Dir(path)
	temporary, err := os.CreateTemp(directory, ".messagelog-*.tmp")
	if err != nil {
		return fmt.Errorf("messagelog: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	success := false
	defer func() {
		if !success {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	buffered := bufio.NewWriter(temporary)
	compressed, err := CompressionFor(path).compressor(buffered)
	if err != nil {
		return fmt.Errorf("messagelog: %w", err)
	}
	encoder := codec.NewEncoder(compressed)
	if err := encoder.Encode(header{Version: formatVersion, SavedAt: savedAt.UTC(), Count: len(records)}); err != nil {
		return fmt.Errorf("messagelog: writing header: %w", err)
	}
	for index := range records {
		if err := encoder.Encode(records[index]); err != nil {
			return fmt.Errorf("messagelog: writing record %d: %w", index, err)
		}
	}
	if err := compressed.Close(); err != nil {
		return fmt.Errorf("messagelog: finishing compression: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("messagelog: flushing: %w", err)
	}
	if err := temporary.Sync(); err != nil {
		return fmt.Errorf("messagelog: syncing: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("messagelog: closing: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("messagelog: renaming into place: %w", err)
	}
	success = true
	return nil
}

// LoadOptions filters what Load returns.
type LoadOptions struct {
	// Now is the reference time for MaxAge.
	Now time.Time

	// MaxAge drops records received longer ago than this. A whole
	// file saved longer ago than this is ignored. Zero selects
	// DefaultMaxAge.
	MaxAge time.Duration

	// MaxRecords keeps only the newest records. Zero keeps all.
	MaxRecords int
}

// Load reads the records saved at path that pass options, oldest
// first. A missing file yields an error matching os.ErrNotExist.
func Load(path string, options LoadOptions) ([]Record, error) {
	if options.MaxAge <= 0 {
		options.MaxAge = DefaultMaxAge
	}
	cutoff := options.Now.Add(-options.MaxAge)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("messagelog: %w", err)
	}
	defer file.Close()

	source, release, err := CompressionFor(path).decompressor(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("messagelog: %w", err)
	}
	defer release()

	decoder := codec.NewDecoder(source)
	var fileHeader header
	if err := decoder.Decode(&fileHeader); err != nil {
		return nil, fmt.Errorf("messagelog: reading header of %s: %w", path, err)
	}
	if fileHeader.Version != formatVersion {
		return nil, fmt.Errorf("messagelog: %s has format version %d, want %d", path, fileHeader.Version, formatVersion)
	}
	if fileHeader.SavedAt.Before(cutoff) {
		return nil, nil
	}

	var records []Record
	for {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("messagelog: reading record %d of %s: %w", len(records), path, err)
		}
		if record.ReceivedAt.Before(cutoff) {
			continue
		}
		records = append(records, record)
	}

	if options.MaxRecords > 0 && len(records) > options.MaxRecords {
		records = records[len(records)-options.MaxRecords:]
	}
	return records, nil
}
