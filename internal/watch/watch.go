// Package watch re-reads component status whenever the tools directory
// changes, and periodically to catch processes started or stopped elsewhere.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"

	"devstack/internal/process"
)

// Event carries a fresh snapshot, or the error that prevented one.
type Event struct {
	Statuses []process.Status
	Err      error
}

// SnapshotFunc reads the current status of every installed service.
type SnapshotFunc func() ([]process.Status, error)

// Options configures a watch.
type Options struct {
	ToolsDir string
	Snapshot SnapshotFunc
	// Interval between polls when nothing changes on disk. Zero means 2s.
	Interval time.Duration
	// Debounce collapses bursts of filesystem events. Zero means 200ms.
	Debounce time.Duration
}

// CleanupFunc stops the watch and waits for it to finish.
type CleanupFunc func() error

// Watch emits the initial snapshot and then one Event per change. The
// channel is closed after cleanup or when ctx ends.
func Watch(ctx context.Context, opts Options) (<-chan Event, CleanupFunc, error) {
	if opts.Snapshot == nil {
		return nil, nil, fmt.Errorf("watch: snapshot func is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if err := os.MkdirAll(opts.ToolsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("watch: %w", err)
	}
	if err := addTree(watcher, opts.ToolsDir); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", opts.ToolsDir, err)
	}

	ch := make(chan Event, 4)
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	sctx.Go(func(sctx *stopper.Context) error {
		var last []process.Status
		first := true
		send := func() bool {
			statuses, err := opts.Snapshot()
			if err == nil && !first && reflect.DeepEqual(statuses, last) {
				return true
			}
			first = false
			if err == nil {
				last = statuses
			}
			select {
			case ch <- Event{Statuses: statuses, Err: err}:
				return true
			case <-sctx.Stopping():
				return false
			}
		}

		if !send() {
			return nil
		}

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		debounce := time.NewTimer(opts.Debounce)
		debounce.Stop()
		defer debounce.Stop()

		for {
			select {
			case <-sctx.Stopping():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == opts.ToolsDir {
					// New install roots appear one level down.
					_ = watcher.Add(event.Name)
				}
				debounce.Reset(opts.Debounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				select {
				case ch <- Event{Err: err}:
				case <-sctx.Stopping():
					return nil
				}
			case <-debounce.C:
				if !send() {
					return nil
				}
			case <-ticker.C:
				if !send() {
					return nil
				}
			}
		}
	})

	return ch, cleanup, nil
}

// addTree watches dir and its immediate subdirectories.
func addTree(w *fsnotify.Watcher, dir string) error {
	if err := w.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := w.Add(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
