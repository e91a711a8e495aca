// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bureau-foundation/ipcdemo/lib/clock"
)

// DefaultDebounce is how long a Watcher waits after the last change
// event before reloading.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures a Watcher. Zero fields take defaults.
type WatchOptions struct {
	Debounce time.Duration

	// Load reads the file into a Buffer. Defaults to ReadFromPath;
	// sealed.LoadSecret supplies a decrypting loader.
	Load func(path string) (*Buffer, error)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Watcher reloads a secret file when it changes. The parent directory
// is watched rather than the file so that editors and tools which
// replace the file by rename are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	load     func(string) (*Buffer, error)
	clock    clock.Clock
	logger   *slog.Logger
	notify   *fsnotify.Watcher
}

// NewWatcher starts watching path's directory. Events that arrive
// before Run are queued by the kernel and not lost.
func NewWatcher(path string, options WatchOptions) (*Watcher, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("secret: resolving %s: %w", path, err)
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}
	if options.Load == nil {
		options.Load = ReadFromPath
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("secret: creating watcher: %w", err)
	}
	if err := notify.Add(filepath.Dir(absolute)); err != nil {
		notify.Close()
		return nil, fmt.Errorf("secret: watching %s: %w", filepath.Dir(absolute), err)
	}
	return &Watcher{
		path:     absolute,
		debounce: options.Debounce,
		load:     options.Load,
		clock:    options.Clock,
		logger:   options.Logger.With("secret_file", absolute),
		notify:   notify,
	}, nil
}

// Run delivers a freshly loaded Buffer to onChange after each burst of
// changes to the file. onChange owns the buffer. A reload that fails
// (the file is briefly missing or empty mid-rewrite) is logged and
// skipped. Run returns nil when ctx is canceled.
func (w *Watcher) Run(ctx context.Context, onChange func(*Buffer)) error {
	defer w.notify.Close()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			settle = w.clock.After(w.debounce)

		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("secret watcher error", "error", err)

		case <-settle:
			settle = nil
			buffer, err := w.load(w.path)
			if err != nil {
				w.logger.Warn("secret reload failed, keeping previous secret", "error", err)
				continue
			}
			w.logger.Info("secret reloaded", "bytes", buffer.Len())
			onChange(buffer)
		}
	}
}
