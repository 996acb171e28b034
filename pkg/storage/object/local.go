// Package object provides object storage implementations.
package object

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethoflow/ethoflow/pkg/interfaces"
)

// LocalStorage implements ObjectStorage for a local directory.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a new local filesystem storage rooted at root.
func NewLocalStorage(root string) (*LocalStorage, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &LocalStorage{root: absRoot}, nil
}

// Root returns the absolute root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Scheme returns "file".
func (s *LocalStorage) Scheme() string {
	return "file"
}

// Put writes data to a path. The file is written to a temporary name in the
// same directory and renamed into place, so readers never see a partial file.
func (s *LocalStorage) Put(ctx context.Context, path string, data io.Reader, opts interfaces.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath := s.fullPath(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if opts.IfNotExists {
		if _, err := os.Stat(fullPath); err == nil {
			return fmt.Errorf("%s: %w", path, interfaces.ErrObjectExists)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".ethoflow-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Get returns a reader for the object.
func (s *LocalStorage) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(s.fullPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes an object.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(s.fullPath(path)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if an object exists.
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.fullPath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Head returns object metadata.
func (s *LocalStorage) Head(ctx context.Context, path string) (interfaces.ObjectInfo, error) {
	info, err := os.Stat(s.fullPath(path))
	if err != nil {
		return interfaces.ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}

	return interfaces.ObjectInfo{
		Path:         path,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}, nil
}

func (s *LocalStorage) fullPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}
