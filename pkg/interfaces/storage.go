// Package interfaces declares contracts shared by output backends.
package interfaces

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectExists is returned by Put when IfNotExists is set and the
// object is already present.
var ErrObjectExists = errors.New("object already exists")

// ObjectStorage is a destination for exported result files.
type ObjectStorage interface {
	Put(ctx context.Context, path string, data io.Reader, opts PutOptions) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)

	// Head returns object metadata.
	Head(ctx context.Context, path string) (ObjectInfo, error)

	// Scheme returns the storage scheme ("file" or "s3").
	Scheme() string
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	ContentType  string
	Metadata     map[string]string
}

// PutOptions configures write operations.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	// If set, the write will fail with ErrObjectExists if the object already exists.
	IfNotExists bool
}
