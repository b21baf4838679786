package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface for keyed blobs. The profile history is kept as one
// blob; all database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	// GetBlob returns ErrNotFound when key has never been written.
	GetBlob(ctx context.Context, key string) ([]byte, error)
	PutBlob(ctx context.Context, key string, value []byte) error
	DeleteBlob(ctx context.Context, key string) error
}
