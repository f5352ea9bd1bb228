package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore layers an expirable LRU cache in front of a durable Store.
// Reads prefer the cache; writes confirm durable success before the cache
// is touched, so the cache can never report a value the backend rejected.
type CachedStore struct {
	durable Store
	cache   *lru.LRU[string, string]
}

// NewCachedStore wraps a durable store with an in-process cache of at most
// size entries, each expiring after ttl.
func NewCachedStore(durable Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 1024
	}

	cache := lru.NewLRU[string, string](size, nil, ttl)

	return &CachedStore{
		durable: durable,
		cache:   cache,
	}
}

// Get returns the cached value if present, falling back to the durable store
func (s *CachedStore) Get(ctx context.Context, key string) (string, bool, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, true, nil
	}

	value, ok, err := s.durable.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if ok {
		s.cache.Add(key, value)
	}
	return value, ok, nil
}

// Set writes durably first, then populates the cache
func (s *CachedStore) Set(ctx context.Context, key, value string) error {
	if err := s.durable.Set(ctx, key, value); err != nil {
		return err
	}
	s.cache.Add(key, value)
	return nil
}

// SetWithTTL writes durably first, then populates the cache. The cache entry
// expires on the cache's own TTL, which must not exceed the store TTL for
// keys written through this path.
func (s *CachedStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.durable.SetWithTTL(ctx, key, value, ttl); err != nil {
		return err
	}
	s.cache.Add(key, value)
	return nil
}

// Delete purges the cache entries before deleting durably, so a failed
// durable delete re-reads from the backend rather than serving a stale hit
func (s *CachedStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.cache.Remove(key)
	}
	return s.durable.Delete(ctx, keys...)
}

// Keys always bypasses the cache
func (s *CachedStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.durable.Keys(ctx, pattern)
}

// Ping checks durable backend connectivity
func (s *CachedStore) Ping(ctx context.Context) error {
	return s.durable.Ping(ctx)
}

// Close purges the cache and closes the durable store
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.durable.Close()
}
