// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inbox

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/ipcdemo/lib/messagelog"
)

// Records returns the entries of every sender tab, oldest first.
func (b *Board) Records() []messagelog.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	var records []messagelog.Record
	for _, name := range b.order {
		current := b.tabs[name]
		if current.kind != KindSender {
			continue
		}
		for _, entry := range current.entries {
			records = append(records, messagelog.Record{
				ID:         entry.ID,
				Sender:     entry.Sender,
				Type:       entry.Type,
				Payload:    entry.Payload,
				SentAt:     entry.SentAt,
				Endpoint:   entry.Endpoint,
				ReceivedAt: entry.ReceivedAt,
			})
		}
	}
	slices.SortStableFunc(records, func(x, y messagelog.Record) int {
		return x.ReceivedAt.Compare(y.ReceivedAt)
	})
	return records
}

// Restore files previously accepted records into sender tabs without
// verifying them again or advancing the receipt counter. Records from
// senders outside the allow-list are skipped. It returns how many
// records were filed.
func (b *Board) Restore(records []messagelog.Record) int {
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(x, y messagelog.Record) int {
		return x.ReceivedAt.Compare(y.ReceivedAt)
	})

	restored := 0
	b.mu.Lock()
	for _, record := range ordered {
		if b.allow != nil && !b.allow[record.Sender] {
			continue
		}
		id := record.ID
		if id == "" {
			id = uuid.NewString()
		}
		b.addLocked(senderTab(record.Sender), KindSender, Entry{
			ID:         id,
			Sender:     record.Sender,
			Type:       record.Type,
			Payload:    record.Payload,
			SentAt:     record.SentAt,
			Endpoint:   record.Endpoint,
			ReceivedAt: record.ReceivedAt,
		}, record.ReceivedAt)
		restored++
	}
	b.mu.Unlock()

	if restored > 0 {
		b.notify()
	}
	return restored
}

// SaveLog writes Records to path.
func (b *Board) SaveLog(path string) error {
	records := b.Records()
	if err := messagelog.Save(path, records, b.clock.Now()); err != nil {
		return err
	}
	b.logger.Info("message log saved", "path", path, "records", len(records))
	return nil
}

// RestoreLog restores the records at path younger than maxAge. A
// missing file restores nothing and is not an error.
func (b *Board) RestoreLog(path string, maxAge time.Duration) (int, error) {
	records, err := messagelog.Load(path, messagelog.LoadOptions{
		Now:    b.clock.Now(),
		MaxAge: maxAge,
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inbox: restoring %s: %w", path, err)
	}
	restored := b.Restore(records)
	b.logger.Info("message log restored", "path", path, "records", restored)
	return restored, nil
}
