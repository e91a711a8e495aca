// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messagelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var saveTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func sampleRecords(count int, newest time.Time) []Record {
	records := make([]Record, count)
	for index := range records {
		records[index] = Record{
			ID:         fmt.Sprintf("id-%d", index),
			Sender:     "workstation",
			Type:       "data",
			Payload:    fmt.Sprintf("payload %d", index),
			SentAt:     "2026-01-15T11:00:00Z",
			Endpoint:   "127.0.0.1:50000",
			ReceivedAt: newest.Add(-time.Duration(count-1-index) * time.Minute),
		}
	}
	return records
}

func TestSaveLoadEachCompression(t *testing.T) {
	for _, name := range []string{"messages.cbor", "messages.cbor.zst", "messages.cbor.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			records := sampleRecords(5, saveTime)
			if err := Save(path, records, saveTime); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(path, LoadOptions{Now: saveTime})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(loaded) != len(records) {
				t.Fatalf("loaded %d records, want %d", len(loaded), len(records))
			}
			for index := range records {
				if loaded[index].ID != records[index].ID || loaded[index].Payload != records[index].Payload {
					t.Errorf("record %d = %+v, want %+v", index, loaded[index], records[index])
				}
				if !loaded[index].ReceivedAt.Equal(records[index].ReceivedAt) {
					t.Errorf("record %d ReceivedAt = %v, want %v", index, loaded[index].ReceivedAt, records[index].ReceivedAt)
				}
			}
		})
	}
}

func TestCompressionFor(t *testing.T) {
	tests := map[string]Compression{
		"log":          CompressionNone,
		"log.cbor":     CompressionNone,
		"log.ZST":      CompressionZstd,
		"log.zstd":     CompressionZstd,
		"dir.zst/log":  CompressionNone,
		"log.cbor.lz4": CompressionLZ4,
	}
	for path, want := range tests {
		if got := CompressionFor(path); got != want {
			t.Errorf("CompressionFor(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestLoadDropsOldRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor")
	records := []Record{
		{ID: "old", ReceivedAt: saveTime.Add(-72 * time.Hour)},
		{ID: "recent", ReceivedAt: saveTime.Add(-time.Hour)},
	}
	if err := Save(path, records, saveTime); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, LoadOptions{Now: saveTime})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "recent" {
		t.Fatalf("loaded %+v, want only the recent record", loaded)
	}
}

func TestLoadIgnoresStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor")
	if err := Save(path, sampleRecords(3, saveTime), saveTime); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, LoadOptions{Now: saveTime.Add(49 * time.Hour)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded %d records from a stale file", len(loaded))
	}
}

func TestLoadKeepsNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor.zst")
	if err := Save(path, sampleRecords(10, saveTime), saveTime); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path, LoadOptions{Now: saveTime, MaxRecords: 3})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d records, want 3", len(loaded))
	}
	if loaded[0].ID != "id-7" || loaded[2].ID != "id-9" {
		t.Errorf("kept %s..%s, want id-7..id-9", loaded[0].ID, loaded[2].ID)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"), LoadOptions{Now: saveTime})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.cbor")
	if err := os.WriteFile(path, []byte("not cbor at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, LoadOptions{Now: saveTime}); err == nil {
		t.Fatal("Load accepted a garbage file")
	}
}

func TestSaveReplacesAndLeavesNoTemporaries(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "messages.cbor")
	if err := Save(path, sampleRecords(4, saveTime), saveTime); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(path, sampleRecords(1, saveTime), saveTime); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	loaded, err := Load(path, LoadOptions{Now: saveTime})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("loaded %d records after replace, want 1", len(loaded))
	}
	entries, _ := os.ReadDir(directory)
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the log", len(entries))
	}
}
