package hasher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/jamesainslie/changeguard/pkg/changeguard/cache"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// CachedHasher consults a hash cache before delegating to another Hasher.
// A cached hash is reused only when the file's size and modification time
// and the hasher name all match.
type CachedHasher struct {
	inner Hasher
	store *cache.Store

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedHasher wraps inner with store.
func NewCachedHasher(inner Hasher, store *cache.Store) *CachedHasher {
	return &CachedHasher{inner: inner, store: store}
}

// Name returns the wrapped hasher's name.
func (h *CachedHasher) Name() string {
	return h.inner.Name()
}

// Hash implements Hasher.
func (h *CachedHasher) Hash(ctx context.Context, root, rel string) (string, error) {
	info, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if statErr == nil {
		entry, err := h.store.Get(root, rel)
		if err == nil && entry.Fresh(info, h.inner.Name()) {
			h.hits.Add(1)
			return entry.Hash, nil
		}
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			logging.Get("cache").Warn("cache read failed", "path", rel, "err", err)
		}
	}

	h.misses.Add(1)
	sum, err := h.inner.Hash(ctx, root, rel)
	if err != nil {
		return "", err
	}

	if statErr == nil {
		if err := h.store.Put(root, rel, cache.NewEntry(info, h.inner.Name(), sum)); err != nil {
			logging.Get("cache").Warn("cache write failed", "path", rel, "err", err)
		}
	}
	return sum, nil
}

// Stats returns the number of cache hits and misses so far.
func (h *CachedHasher) Stats() (hits, misses int64) {
	return h.hits.Load(), h.misses.Load()
}
