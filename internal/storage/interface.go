package storage

import (
	"context"
	"io"
)

// ObjectStorage is the write side of the payload archive.
type ObjectStorage interface {
	// Upload stores reader under key, replacing any existing object.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}
