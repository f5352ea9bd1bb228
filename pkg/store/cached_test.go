package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore wraps a Store and fails every write
type failingStore struct {
	Store
}

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("backend unavailable")
}

func (f *failingStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("backend unavailable")
}

func setupCachedStoreTest(t *testing.T) (*CachedStore, *RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	durable, err := NewRedisStore(RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { durable.Close() })

	return NewCachedStore(durable, 128, time.Minute), durable, mr
}

func TestCachedStore_WriteThrough(t *testing.T) {
	cached, _, mr := setupCachedStoreTest(t)
	ctx := context.Background()

	require.NoError(t, cached.Set(ctx, "guild:1:role_mode", "classes"))

	// The durable backend holds the value
	got, err := mr.Get("guild:1:role_mode")
	require.NoError(t, err)
	assert.Equal(t, "classes", got)

	value, ok, err := cached.Get(ctx, "guild:1:role_mode")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "classes", value)
}

func TestCachedStore_ReadPrefersCache(t *testing.T) {
	cached, _, mr := setupCachedStoreTest(t)
	ctx := context.Background()

	require.NoError(t, cached.Set(ctx, "key", "v1"))

	// Mutate the backend behind the cache's back; the cached value wins
	// until it expires or is invalidated.
	mr.Set("key", "v2")

	value, _, err := cached.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
}

func TestCachedStore_MissFallsThroughAndPopulates(t *testing.T) {
	cached, _, mr := setupCachedStoreTest(t)
	ctx := context.Background()

	mr.Set("external", "written-out-of-band")

	value, ok, err := cached.Get(ctx, "external")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "written-out-of-band", value)

	// Second read is served from cache even if the backend loses the key
	mr.Del("external")
	value, ok, err = cached.Get(ctx, "external")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "written-out-of-band", value)
}

func TestCachedStore_DurableFailureDoesNotPopulateCache(t *testing.T) {
	_, durable, _ := setupCachedStoreTest(t)
	cached := NewCachedStore(&failingStore{Store: durable}, 128, time.Minute)
	ctx := context.Background()

	err := cached.Set(ctx, "key", "value")
	require.Error(t, err)

	// The failed write must not be readable from the cache
	_, ok, err := cached.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStore_DeletePurgesCache(t *testing.T) {
	cached, _, mr := setupCachedStoreTest(t)
	ctx := context.Background()

	require.NoError(t, cached.Set(ctx, "key", "value"))
	require.NoError(t, cached.Delete(ctx, "key"))

	assert.False(t, mr.Exists("key"))

	_, ok, err := cached.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedStore_KeysBypassesCache(t *testing.T) {
	cached, _, mr := setupCachedStoreTest(t)
	ctx := context.Background()

	mr.Set("discord:1:keycloak", "a")
	mr.Set("discord:2:keycloak", "b")

	keys, err := cached.Keys(ctx, "discord:*:keycloak")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestCachedStore_SetWithTTLExpiresDurably(t *testing.T) {
	_, durable, mr := setupCachedStoreTest(t)
	// Cache TTL shorter than store TTL so the cache never outlives the key
	cached := NewCachedStore(durable, 128, time.Second)
	ctx := context.Background()

	require.NoError(t, cached.SetWithTTL(ctx, "verify:t", "payload", 10*time.Minute))
	mr.FastForward(11 * time.Minute)
	time.Sleep(1100 * time.Millisecond)

	_, ok, err := cached.Get(ctx, "verify:t")
	require.NoError(t, err)
	assert.False(t, ok)
}
