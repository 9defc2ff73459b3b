package port

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a BlobStore when the key is absent.
var ErrNotFound = errors.New("key not found")

// BlobStore is the durable key/blob storage used by the persistence bridge.
// No transactional semantics are required of it.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
