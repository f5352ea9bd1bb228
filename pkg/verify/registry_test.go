package verify

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := store.NewRedisStore(store.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRegistry(t *testing.T) *PendingRegistry {
	t.Helper()
	return NewPendingRegistry(newTestStore(t), observability.NewLogger(observability.ErrorLevel, io.Discard))
}

func TestCreateAndLookup(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	pending, err := registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)
	assert.NotEmpty(t, pending.Token)

	got, ok, err := registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.DiscordID)
	assert.Equal(t, "g1", got.GuildID)
	assert.Equal(t, "Jane", got.DisplayName)
}

func TestLookupUnknownToken(t *testing.T) {
	registry := newTestRegistry(t)

	_, ok, err := registry.Lookup(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupFallsThroughToDurableStore(t *testing.T) {
	s := newTestStore(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	ctx := context.Background()

	first := NewPendingRegistry(s, logger)
	pending, err := first.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	// A fresh registry simulates a restart: the map is empty but the
	// durable record is still there.
	second := NewPendingRegistry(s, logger)
	got, ok, err := second.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", got.DiscordID)
}

func TestLookupExpiredEntry(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	pending, err := registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	registry.now = func() time.Time { return pending.CreatedAt.Add(TokenTTL + time.Second) }

	_, ok, err := registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateFailsWhenDurableStoreDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	s, err := store.NewRedisStore(store.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	registry := NewPendingRegistry(s, observability.NewLogger(observability.ErrorLevel, io.Discard))
	mr.Close()

	pending, err := registry.Create(context.Background(), "u1", "g1", "Jane")
	assert.Error(t, err)
	assert.Nil(t, pending)
}

func TestConsumeRemovesExactlyOnce(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	pending, err := registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	removed, err := registry.Consume(ctx, pending.Token)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err := registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	// Second consume finds nothing to remove.
	removed, err = registry.Consume(ctx, pending.Token)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestConsumeFallsBackToDurable(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	pending, err := registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	// Drop the in-process entry, as a restart would.
	registry.mu.Lock()
	delete(registry.entries, pending.Token)
	registry.mu.Unlock()

	removed, err := registry.Consume(ctx, pending.Token)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestPendingVerificationExpired(t *testing.T) {
	created := time.Now()
	p := &PendingVerification{CreatedAt: created}

	assert.False(t, p.Expired(created.Add(TokenTTL-time.Second)))
	assert.True(t, p.Expired(created.Add(TokenTTL)))
}

func TestQueueErrors(t *testing.T) {
	q := NewCompletionQueue()
	q.Close()
	assert.True(t, errors.Is(q.Publish(CompletionEvent{}), ErrQueueClosed))
}
