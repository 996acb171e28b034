// Package lifecycle releases resources in reverse order of acquisition,
// within a deadline.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a Shutdown call when the context has no deadline.
const DefaultTimeout = 30 * time.Second

// CloseFunc releases one resource.
type CloseFunc func(ctx context.Context) error

type closer struct {
	name string
	fn   CloseFunc
}

// ShutdownManager closes registered resources once.
type ShutdownManager struct {
	mu      sync.Mutex
	closers []closer
	done    bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewShutdownManager creates a manager. A nil logger discards output.
func NewShutdownManager(logger *slog.Logger) *ShutdownManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ShutdownManager{timeout: DefaultTimeout, logger: logger}
}

// WithTimeout sets the deadline applied when the Shutdown context has none.
func (m *ShutdownManager) WithTimeout(d time.Duration) *ShutdownManager {
	if d > 0 {
		m.timeout = d
	}
	return m
}

// Register adds a resource. Resources are closed last-registered first.
func (m *ShutdownManager) Register(name string, fn CloseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, closer{name: name, fn: fn})
}

// RegisterCloser adds an io.Closer.
func (m *ShutdownManager) RegisterCloser(name string, c io.Closer) {
	m.Register(name, func(context.Context) error { return c.Close() })
}

// Shutdown closes every resource and joins their errors. Later calls are
// no-ops.
func (m *ShutdownManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		start := time.Now()
		if err := c.fn(ctx); err != nil {
			m.logger.Warn("close failed", "resource", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		m.logger.Debug("closed", "resource", c.name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}
