// Package watch reloads a registry when files under its roots change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/registry"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before reloading.
const DefaultDebounce = 200 * time.Millisecond

var recordExts = map[string]bool{".md": true, ".mdc": true, ".txt": true}

// Watcher watches the directory trees of one or more roots.
type Watcher struct {
	fs       *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher over every directory below roots. Roots that do not
// exist are an error.
func New(roots []string, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsWatcher,
		debounce: DefaultDebounce,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsWatcher.Close()
			return nil, err
		}
		if err := w.addTree(abs); err != nil {
			_ = fsWatcher.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}

	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// addTree watches dir and every directory below it. Unreadable
// subdirectories are skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("cannot watch %q: %w", dir, err)
			}
			w.logger.Debug("skipping unreadable directory", logging.Path(path), logging.Err(err))
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("cannot watch %q: %w", dir, err)
			}
			w.logger.Debug("skipping directory", logging.Path(path), logging.Err(err))
		}
		return nil
	})
}

// relevant reports whether an event can change the registry.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if recordExts[strings.ToLower(filepath.Ext(event.Name))] {
		return true
	}
	// Directory creations, removals and renames carry no extension.
	return filepath.Ext(event.Name) == ""
}

// Run blocks until ctx is canceled, calling onChange once per settled burst
// of relevant events. The watcher is closed when Run returns.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	defer func() { _ = w.fs.Close() }()

	// Go 1.23 timers never deliver stale values after Stop or Reset.
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", logging.Path(event.Name), logging.Err(err))
					}
				}
			}
			w.logger.Debug("change detected", logging.Path(event.Name), slog.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("event queue overflowed, reloading", logging.Err(err))
				timer.Reset(w.debounce)
				continue
			}
			w.logger.Warn("watch error", logging.Err(err))
		}
	}
}

// Close releases the watcher without running it.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// ReloadFunc receives every load result: the initial one and one per
// settled change. A failed reload passes a nil registry and the error.
type ReloadFunc func(reg *registry.Registry, err error)

// Reload loads roots, reports the result, then reloads on every change
// until ctx is canceled.
func Reload(ctx context.Context, roots []string, emit ReloadFunc, watchOpts []Option, loadOpts ...registry.Option) error {
	w, err := New(roots, watchOpts...)
	if err != nil {
		return err
	}

	load := func(ctx context.Context) {
		reg, err := registry.LoadAll(ctx, roots, loadOpts...)
		if ctx.Err() != nil {
			return
		}
		emit(reg, err)
	}

	load(ctx)
	return w.Run(ctx, load)
}
