// Package watcher re-runs simulations when model files change on disk.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mettamodeler/mettasim/pkg/logging"
)

// ChangeEvent represents a batch of model file changes
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches model files for changes. Editors typically replace
// files by rename, so the parent directories are watched and events are
// filtered back down to the files of interest.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool // absolute paths of watched files
	events  chan ChangeEvent
	done    chan struct{}
	stop    sync.Once
}

// NewFileWatcher creates a watcher for the given model files
func NewFileWatcher(paths ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve path %q: %w", p, err)
		}
		files[abs] = true
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   files,
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}

	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for f := range fw.files {
		if _, err := os.Stat(f); err != nil {
			logging.Warn("watched file is not readable yet", "path", f, "error", err)
		}
		dirs[filepath.Dir(f)] = true
	}

	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	logging.Info("watching model files", "files", len(fw.files), "directories", len(dirs))

	go fw.processEvents(ctx)

	return nil
}

// relevant reports whether a filesystem event concerns a watched model file.
// An exact path match always counts; otherwise the file must sit in a watched
// directory and carry a model extension, which picks up editor save-by-rename.
func (fw *FileWatcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if fw.files[abs] {
		return true
	}

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".json", ".yaml", ".yml":
	default:
		return false
	}

	dir := filepath.Dir(abs)
	for f := range fw.files {
		if filepath.Dir(f) == dir {
			return true
		}
	}
	return false
}

// processEvents batches file system events so one save does not emit one
// event per write syscall. The event channel closes on every exit path,
// so downstream range loops always terminate.
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	var pending []string

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		fw.events <- ChangeEvent{
			Paths:     pending,
			Timestamp: time.Now(),
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			return

		case <-fw.done:
			fw.watcher.Close()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Removes and chmods are noise; writes, creates and renames matter
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !fw.relevant(event.Name) {
				continue
			}

			pending = append(pending, event.Name)
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop ends watching. Safe to call more than once and alongside context
// cancellation.
func (fw *FileWatcher) Stop() error {
	fw.stop.Do(func() { close(fw.done) })
	return nil
}
