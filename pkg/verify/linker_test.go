package verify

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolegate/rolegate/pkg/keycloak"
	"github.com/rolegate/rolegate/pkg/observability"
)

// fakeIDP is an in-memory identity provider: a map from SSO subject to
// the Discord identity linked on that account.
type fakeIDP struct {
	identities map[string]*keycloak.FederatedIdentity
	unlinked   []string
}

func (f *fakeIDP) DiscordIdentity(ctx context.Context, userID string) (*keycloak.FederatedIdentity, error) {
	return f.identities[userID], nil
}

func (f *fakeIDP) DeleteFederatedIdentity(ctx context.Context, userID, providerAlias string) error {
	delete(f.identities, userID)
	f.unlinked = append(f.unlinked, userID)
	return nil
}

type linkerFixture struct {
	registry *PendingRegistry
	idp      *fakeIDP
	queue    *CompletionQueue
	linker   *Linker
}

func newLinkerFixture(t *testing.T) *linkerFixture {
	t.Helper()

	registry := newTestRegistry(t)
	idp := &fakeIDP{identities: make(map[string]*keycloak.FederatedIdentity)}
	queue := NewCompletionQueue()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	linker := NewLinker(registry, idp, queue, logger, metrics, func(token string) string {
		return "https://sso.example.edu/link?state=" + token
	})
	return &linkerFixture{registry: registry, idp: idp, queue: queue, linker: linker}
}

func TestStartUnlinkedAccountAwaitsExternalAuth(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	result, err := f.linker.Start(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingExternalAuth, result.Outcome)
	assert.Equal(t, "https://sso.example.edu/link?state="+pending.Token, result.LinkURL)
	assert.Equal(t, 0, f.queue.Len())

	// Token still valid: the user has not completed anything yet.
	_, ok, err := f.registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartAlreadyLinkedMatchingCompletesImmediately(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)
	f.idp.identities["s1"] = &keycloak.FederatedIdentity{IdentityProvider: "discord", UserID: "u1"}

	result, err := f.linker.Start(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, result.Outcome)

	event, err := f.queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, CompletionEvent{DiscordID: "u1", GuildID: "g1", KeycloakID: "s1"}, event)

	// Token is consumed.
	_, ok, err := f.registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartAlreadyLinkedElsewhere(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)
	f.idp.identities["s1"] = &keycloak.FederatedIdentity{IdentityProvider: "discord", UserID: "u2"}

	result, err := f.linker.Start(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLinkedElsewhere, result.Outcome)
	assert.Equal(t, 0, f.queue.Len())

	// No mutation: the foreign identity stays linked and the token
	// remains valid until its own expiry.
	assert.NotNil(t, f.idp.identities["s1"])
	_, ok, err := f.registry.Lookup(ctx, pending.Token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStartExpiredToken(t *testing.T) {
	f := newLinkerFixture(t)

	result, err := f.linker.Start(context.Background(), "unknown-token", "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)
	assert.Nil(t, result.Pending)
}

func TestResumeCompletesAfterLinkStep(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	result, err := f.linker.Start(ctx, pending.Token, "s1")
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingExternalAuth, result.Outcome)

	// The provider's link action attaches the right Discord account.
	f.idp.identities["s1"] = &keycloak.FederatedIdentity{IdentityProvider: "discord", UserID: "u1"}

	result, err = f.linker.Resume(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, result.Outcome)

	event, err := f.queue.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, CompletionEvent{DiscordID: "u1", GuildID: "g1", KeycloakID: "s1"}, event)

	// Replaying the consumed token yields Expired, never a second
	// completion event.
	result, err = f.linker.Resume(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)
	assert.Equal(t, 0, f.queue.Len())
}

func TestResumeNotLinked(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)

	result, err := f.linker.Resume(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotLinked, result.Outcome)
	assert.Equal(t, 0, f.queue.Len())
}

func TestResumeWrongIdentityUnlinksAtProvider(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)
	f.idp.identities["s1"] = &keycloak.FederatedIdentity{IdentityProvider: "discord", UserID: "u9"}

	result, err := f.linker.Resume(ctx, pending.Token, "s1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeWrongIdentity, result.Outcome)
	assert.Equal(t, []string{"s1"}, f.idp.unlinked)
	assert.Equal(t, 0, f.queue.Len())
}

func TestConcurrentCallbacksEmitOneEvent(t *testing.T) {
	f := newLinkerFixture(t)
	ctx := context.Background()

	pending, err := f.registry.Create(ctx, "u1", "g1", "Jane")
	require.NoError(t, err)
	f.idp.identities["s1"] = &keycloak.FederatedIdentity{IdentityProvider: "discord", UserID: "u1"}

	// Two callbacks for the same token race to complete. Whichever
	// interleaving occurs, exactly one wins and exactly one event is
	// emitted; the loser sees Expired.
	results := make([]*Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.linker.Resume(ctx, pending.Token, "s1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.queue.Len())
	linked := 0
	for _, result := range results {
		switch result.Outcome {
		case OutcomeLinked:
			linked++
		case OutcomeExpired:
		default:
			t.Fatalf("unexpected outcome %s", result.Outcome)
		}
	}
	assert.Equal(t, 1, linked)
}

func TestOutcomeStrings(t *testing.T) {
	assert.Equal(t, "linked", OutcomeLinked.String())
	assert.Equal(t, "expired", OutcomeExpired.String())
	assert.Equal(t, "wrong_account", OutcomeWrongIdentity.String())
	assert.Equal(t, "already_linked", OutcomeAlreadyLinkedElsewhere.String())
	assert.Equal(t, "not_linked", OutcomeNotLinked.String())
	assert.Equal(t, "awaiting_external_auth", OutcomeAwaitingExternalAuth.String())
}
