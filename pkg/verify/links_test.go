package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkAndResolve(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, links.Link(ctx, "d1", "kc1"))

	kc, ok, err := links.SSOUserFor(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kc1", kc)

	d, ok, err := links.PlatformUserFor(ctx, "kc1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d1", d)

	at, ok, err := links.LinkedAt(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestLinkSamePairIsIdempotent(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, links.Link(ctx, "d1", "kc1"))
	require.NoError(t, links.Link(ctx, "d1", "kc1"))

	count, err := links.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLinkConflictMutatesNothing(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, links.Link(ctx, "d1", "kc1"))

	// Discord side already bound.
	assert.ErrorIs(t, links.Link(ctx, "d1", "kc2"), ErrIdentityConflict)
	// Keycloak side already bound.
	assert.ErrorIs(t, links.Link(ctx, "d2", "kc1"), ErrIdentityConflict)

	kc, ok, err := links.SSOUserFor(ctx, "d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kc1", kc)

	_, ok, err = links.SSOUserFor(ctx, "d2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = links.PlatformUserFor(ctx, "kc2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlinkRemovesBothDirections(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, links.Link(ctx, "d1", "kc1"))
	require.NoError(t, links.Unlink(ctx, "d1"))

	_, ok, err := links.SSOUserFor(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = links.PlatformUserFor(ctx, "kc1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = links.LinkedAt(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlinkWithoutLink(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	assert.ErrorIs(t, links.Unlink(context.Background(), "d1"), ErrNotLinked)
}

func TestCount(t *testing.T) {
	links := NewIdentityLinks(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, links.Link(ctx, "d1", "kc1"))
	require.NoError(t, links.Link(ctx, "d2", "kc2"))

	count, err := links.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
