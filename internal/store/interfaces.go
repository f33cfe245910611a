package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("store: key not found")
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
)

// Blobs is a persistent key-value store with a total byte capacity.
type Blobs interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Used(ctx context.Context) (int64, error)
}

var _ Blobs = (*BlobStore)(nil)
var _ Blobs = (*MemoryStore)(nil)
