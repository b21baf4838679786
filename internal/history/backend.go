package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/incidentdesk/internal/cache"
	"github.com/kiranshivaraju/incidentdesk/internal/store"
)

// Backend persists the history as a single keyed blob.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Load returns the stored blob and whether one exists.
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, blob []byte) error
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// StoreBackend keeps the blob in a database table through store.Store.
type StoreBackend struct {
	store   store.Store
	key     string
	closeFn func() error
}

// NewStoreBackend wraps s. closeFn, when non-nil, releases the underlying connection.
func NewStoreBackend(s store.Store, key string, closeFn func() error) *StoreBackend {
	return &StoreBackend{store: s, key: key, closeFn: closeFn}
}

func (b *StoreBackend) Load(ctx context.Context) ([]byte, bool, error) {
	blob, err := b.store.GetBlob(ctx, b.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load history blob: %w", err)
	}
	return blob, true, nil
}

func (b *StoreBackend) Save(ctx context.Context, blob []byte) error {
	if err := b.store.PutBlob(ctx, b.key, blob); err != nil {
		return fmt.Errorf("save history blob: %w", err)
	}
	return nil
}

func (b *StoreBackend) Delete(ctx context.Context) error {
	if err := b.store.DeleteBlob(ctx, b.key); err != nil {
		return fmt.Errorf("delete history blob: %w", err)
	}
	return nil
}

func (b *StoreBackend) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

func (b *StoreBackend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// CacheBackend keeps the blob in Redis with no expiry.
type CacheBackend struct {
	cache   cache.Cache
	key     string
	closeFn func() error
}

func NewCacheBackend(c cache.Cache, profileKey string, closeFn func() error) *CacheBackend {
	return &CacheBackend{cache: c, key: cache.HistoryKey(profileKey), closeFn: closeFn}
}

func (b *CacheBackend) Load(ctx context.Context) ([]byte, bool, error) {
	blob, ok, err := b.cache.Get(ctx, b.key)
	if err != nil {
		return nil, false, fmt.Errorf("load history blob: %w", err)
	}
	return blob, ok, nil
}

func (b *CacheBackend) Save(ctx context.Context, blob []byte) error {
	if err := b.cache.Set(ctx, b.key, blob, 0); err != nil {
		return fmt.Errorf("save history blob: %w", err)
	}
	return nil
}

func (b *CacheBackend) Delete(ctx context.Context) error {
	if err := b.cache.Delete(ctx, b.key); err != nil {
		return fmt.Errorf("delete history blob: %w", err)
	}
	return nil
}

func (b *CacheBackend) Ping(ctx context.Context) error {
	return b.cache.Ping(ctx)
}

func (b *CacheBackend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// MemoryBackend holds the blob in process memory. Used by tests and one-shot tooling.
type MemoryBackend struct {
	mu      sync.Mutex
	blob    []byte
	present bool

	// SaveErr, when set, is returned by every Save and Delete.
	SaveErr error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWith returns a backend pre-loaded with blob.
func NewMemoryBackendWith(blob []byte) *MemoryBackend {
	return &MemoryBackend{blob: append([]byte(nil), blob...), present: true}
}

func (b *MemoryBackend) Load(_ context.Context) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present {
		return nil, false, nil
	}
	return append([]byte(nil), b.blob...), true, nil
}

func (b *MemoryBackend) Save(_ context.Context, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.blob = append([]byte(nil), blob...)
	b.present = true
	return nil
}

// Blob returns the last saved content.
func (b *MemoryBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.blob = nil
	b.present = false
	return nil
}

// Present reports whether a blob is stored.
func (b *MemoryBackend) Present() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.present
}

func (b *MemoryBackend) Blob() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.blob...)
}

func (b *MemoryBackend) Ping(_ context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

// Compile-time checks.
var (
	_ Backend = (*StoreBackend)(nil)
	_ Backend = (*CacheBackend)(nil)
	_ Backend = (*MemoryBackend)(nil)
)
