package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileExt = ".checkpoint"

// FileBackend stores one JSON file per checkpoint in a directory.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(id string) string {
	return filepath.Join(b.dir, sanitizeKey(id)+fileExt)
}

// Save writes the checkpoint atomically.
func (b *FileBackend) Save(ctx context.Context, cp *Checkpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first, then rename (atomic)
	path := b.path(cp.ID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// Load reads a checkpoint by id.
func (b *FileBackend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// Delete removes a checkpoint.
func (b *FileBackend) Delete(ctx context.Context, id string) error {
	return os.Remove(b.path(id))
}

// FindByKey scans the directory for an incomplete checkpoint with key.
func (b *FileBackend) FindByKey(ctx context.Context, key string) (*Checkpoint, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != fileExt {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.dir, entry.Name()))
		if err != nil {
			continue
		}

		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}

		if cp.Key == key && cp.Phase != PhaseComplete {
			return &cp, nil
		}
	}

	return nil, os.ErrNotExist
}

// Cleanup removes checkpoint files older than maxAge.
func (b *FileBackend) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != fileExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(b.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Name returns "file".
func (b *FileBackend) Name() string {
	return "file"
}
