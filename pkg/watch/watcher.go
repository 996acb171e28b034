// Package watch re-runs a job when a project file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor save bursts into one change.
const DefaultDebounce = 500 * time.Millisecond

// Handler is invoked once per settled change of a watched file.
type Handler func(ctx context.Context, path string) error

// Watcher monitors files and calls a Handler when their content changes.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]*fileState
	mu       sync.Mutex
	debounce time.Duration
	handler  Handler
	logger   *slog.Logger

	// run serializes handler invocations.
	run sync.Mutex
}

type fileState struct {
	modTime time.Time
	size    int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher creates a watcher that calls h on change.
func NewWatcher(h Handler, opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]*fileState),
		debounce: DefaultDebounce,
		handler:  h,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	w.mu.Lock()
	w.files[absPath] = &fileState{modTime: stat.ModTime(), size: stat.Size()}
	w.mu.Unlock()

	// Editors often replace files by rename, so watch the directory.
	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	return nil
}

// Run blocks until ctx is cancelled, handling changes as they settle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			_, watched := w.files[absPath]
			w.mu.Unlock()
			if !watched {
				continue
			}

			if t, ok := timers[absPath]; ok {
				t.Stop()
			}
			timers[absPath] = time.AfterFunc(w.debounce, func() {
				w.handleChange(ctx, absPath)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleChange(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	stat, err := os.Stat(path)
	if err != nil {
		// Mid-rename; the Create event that follows re-arms the timer.
		w.logger.Debug("changed file not readable", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	state := w.files[path]
	unchanged := stat.ModTime().Equal(state.modTime) && stat.Size() == state.size
	state.modTime = stat.ModTime()
	state.size = stat.Size()
	w.mu.Unlock()
	if unchanged {
		return
	}

	w.run.Lock()
	defer w.run.Unlock()

	w.logger.Info("project changed", "path", path)
	if err := w.handler(ctx, path); err != nil {
		w.logger.Error("rerun failed", "path", path, "error", err)
	}
}

// Close stops the watcher without running it.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
