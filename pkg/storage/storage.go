// Package storage opens output destinations by URL.
// Supports: local directories and S3 (s3://bucket/prefix).
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethoflow/ethoflow/pkg/config"
	"github.com/ethoflow/ethoflow/pkg/interfaces"
	"github.com/ethoflow/ethoflow/pkg/storage/object"
	"github.com/ethoflow/ethoflow/pkg/storage/s3"
)

// Open returns the object store rooted at dest.
func Open(ctx context.Context, dest string, cfg config.StorageConfig) (interfaces.ObjectStorage, error) {
	scheme, bucket, prefix := ParsePath(dest)

	switch scheme {
	case "file":
		return object.NewLocalStorage(prefix)
	case "s3":
		if bucket == "" {
			return nil, fmt.Errorf("s3 destination %q has no bucket", dest)
		}
		s3cfg := s3.DefaultConfig(bucket, cfg.S3.Region)
		s3cfg.Prefix = prefix
		s3cfg.Endpoint = cfg.S3.Endpoint
		s3cfg.UsePathStyle = cfg.S3.UsePathStyle
		return s3.NewClient(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", scheme)
	}
}

// ParsePath splits a destination into scheme, bucket and key prefix.
// Plain paths (including Windows drive letters) are local.
func ParsePath(dest string) (scheme, bucket, prefix string) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return "file", "", dest
	}
	if u.Scheme == "file" {
		return "file", "", u.Path
	}
	return u.Scheme, u.Host, strings.TrimPrefix(u.Path, "/")
}

// IsRemote reports whether dest names a non-local store.
func IsRemote(dest string) bool {
	scheme, _, _ := ParsePath(dest)
	return scheme != "file"
}
