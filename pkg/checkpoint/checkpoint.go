// Package checkpoint records which result files of a sampling run were
// exported, so an interrupted export can resume without rewriting them.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phases of a run.
const (
	PhaseExporting = "exporting"
	PhaseComplete  = "complete"
)

// Checkpoint tracks export progress of one run.
type Checkpoint struct {
	// ID is a random run id.
	ID string `json:"id"`

	// Key fingerprints the run inputs; a rerun with the same key resumes.
	Key string `json:"key"`

	ProjectPath string `json:"project_path"`
	Destination string `json:"destination"`

	// Completed lists exported file paths.
	Completed []string `json:"completed"`

	Phase       string     `json:"phase"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Backend persists checkpoints.
type Backend interface {
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns os.ErrNotExist when id is unknown.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	Delete(ctx context.Context, id string) error

	// FindByKey returns the incomplete checkpoint for key, or os.ErrNotExist.
	FindByKey(ctx context.Context, key string) (*Checkpoint, error)

	// Name returns the backend name for logging.
	Name() string
}

// Fingerprint derives a stable run key from its inputs.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Tracker is the live checkpoint of a run. It satisfies export.Tracker.
type Tracker struct {
	backend Backend

	mu   sync.Mutex
	cp   *Checkpoint
	done map[string]struct{}
}

// Start resumes the incomplete checkpoint for key, or creates a new one.
// resumed reports which happened.
func Start(ctx context.Context, b Backend, key, projectPath, destination string) (t *Tracker, resumed bool, err error) {
	cp, err := b.FindByKey(ctx, key)
	switch {
	case err == nil:
		resumed = true
	case errors.Is(err, os.ErrNotExist):
		now := time.Now().UTC()
		cp = &Checkpoint{
			ID:          uuid.NewString(),
			Key:         key,
			ProjectPath: projectPath,
			Destination: destination,
			Phase:       PhaseExporting,
			StartedAt:   now,
			UpdatedAt:   now,
		}
		if err := b.Save(ctx, cp); err != nil {
			return nil, false, fmt.Errorf("save checkpoint: %w", err)
		}
	default:
		return nil, false, fmt.Errorf("find checkpoint: %w", err)
	}

	done := make(map[string]struct{}, len(cp.Completed))
	for _, p := range cp.Completed {
		done[p] = struct{}{}
	}
	return &Tracker{backend: b, cp: cp, done: done}, resumed, nil
}

// ID returns the run id.
func (t *Tracker) ID() string {
	return t.cp.ID
}

// IsDone reports whether path was exported by this run.
func (t *Tracker) IsDone(ctx context.Context, path string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.done[path]
	return ok, nil
}

// MarkDone records path and persists the checkpoint.
func (t *Tracker) MarkDone(ctx context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.done[path]; ok {
		return nil
	}
	t.done[path] = struct{}{}
	t.cp.Completed = append(t.cp.Completed, path)
	sort.Strings(t.cp.Completed)
	t.cp.UpdatedAt = time.Now().UTC()
	return t.backend.Save(ctx, t.cp)
}

// Completed returns the exported paths.
func (t *Tracker) Completed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.cp.Completed...)
}

// Complete marks the run finished. Later runs with the same key start fresh.
func (t *Tracker) Complete(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	t.cp.Phase = PhaseComplete
	t.cp.UpdatedAt = now
	t.cp.CompletedAt = &now
	return t.backend.Save(ctx, t.cp)
}

// Duration returns how long the run has been going.
func (c *Checkpoint) Duration() time.Duration {
	if c.CompletedAt != nil {
		return c.CompletedAt.Sub(c.StartedAt)
	}
	return time.Since(c.StartedAt)
}

// sanitizeKey removes characters that are awkward in file names and keys.
func sanitizeKey(s string) string {
	return strings.NewReplacer("/", "_", ":", "_", " ", "_", `\`, "_").Replace(s)
}
