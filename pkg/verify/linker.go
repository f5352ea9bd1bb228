package verify

import (
	"context"
	"fmt"

	"github.com/rolegate/rolegate/pkg/keycloak"
	"github.com/rolegate/rolegate/pkg/observability"
)

// IdentityProvider is the slice of the Keycloak admin API the state
// machine drives. keycloak.Client implements it.
type IdentityProvider interface {
	DiscordIdentity(ctx context.Context, userID string) (*keycloak.FederatedIdentity, error)
	DeleteFederatedIdentity(ctx context.Context, userID, providerAlias string) error
}

// Result is the outcome of one state machine step, plus the provider
// link URL when the user has to complete the external auth step.
type Result struct {
	Outcome Outcome
	// LinkURL is set only for OutcomeAwaitingExternalAuth.
	LinkURL string
	// Pending is the record the step operated on, for display. Nil for
	// OutcomeExpired.
	Pending *PendingVerification
}

// Linker drives the linking state machine for pending verification
// tokens. It is safe for concurrent use.
type Linker struct {
	registry *PendingRegistry
	idp      IdentityProvider
	queue    *CompletionQueue
	logger   *observability.Logger
	metrics  *observability.Metrics

	// linkURL builds the provider's identity-link URL for a token. The
	// web layer supplies it since it owns the OIDC configuration.
	linkURL func(token string) string
}

// NewLinker wires the state machine's dependencies. linkURL builds the
// externally visible link-step URL for a given token.
func NewLinker(registry *PendingRegistry, idp IdentityProvider, queue *CompletionQueue,
	logger *observability.Logger, metrics *observability.Metrics, linkURL func(token string) string) *Linker {
	return &Linker{
		registry: registry,
		idp:      idp,
		queue:    queue,
		logger:   logger,
		metrics:  metrics,
		linkURL:  linkURL,
	}
}

// Start runs the first state machine step after the user authenticates
// at the SSO provider: an already-linked matching identity completes
// immediately, a mismatched one is rejected without mutation, and an
// unlinked account is sent to the provider's link step.
func (l *Linker) Start(ctx context.Context, token, ssoSubject string) (*Result, error) {
	pending, ok, err := l.registry.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{Outcome: OutcomeExpired}, nil
	}

	identity, err := l.idp.DiscordIdentity(ctx, ssoSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to check federated identity: %w", err)
	}

	if identity != nil {
		if identity.UserID == pending.DiscordID {
			return l.complete(ctx, pending, ssoSubject)
		}
		return &Result{Outcome: OutcomeAlreadyLinkedElsewhere, Pending: pending}, nil
	}

	return &Result{
		Outcome: OutcomeAwaitingExternalAuth,
		LinkURL: l.linkURL(token),
		Pending: pending,
	}, nil
}

// Resume runs the second state machine step, after the provider's link
// action returned. A mismatched identity is unlinked at the provider
// before the step reports failure, so no dangling bad link remains.
func (l *Linker) Resume(ctx context.Context, token, ssoSubject string) (*Result, error) {
	pending, ok, err := l.registry.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{Outcome: OutcomeExpired}, nil
	}

	identity, err := l.idp.DiscordIdentity(ctx, ssoSubject)
	if err != nil {
		return nil, fmt.Errorf("failed to check federated identity: %w", err)
	}

	if identity == nil {
		return &Result{Outcome: OutcomeNotLinked, Pending: pending}, nil
	}

	if identity.UserID != pending.DiscordID {
		if err := l.idp.DeleteFederatedIdentity(ctx, ssoSubject, keycloak.DiscordProviderAlias); err != nil {
			l.logger.WithError(err).WithField("sso_user", ssoSubject).
				Error("Failed to remove mismatched federated identity")
		}
		return &Result{Outcome: OutcomeWrongIdentity, Pending: pending}, nil
	}

	return l.complete(ctx, pending, ssoSubject)
}

// complete consumes the token and then emits exactly one completion
// event. Consume reports whether this caller removed the token, so two
// racing callbacks resolve to one Linked and one Expired and a single
// event. Consume-then-emit means a crash between the two loses the
// completion rather than risking a duplicate; the consumer reports
// hard failures to the user as needing administrator follow-up.
func (l *Linker) complete(ctx context.Context, pending *PendingVerification, ssoSubject string) (*Result, error) {
	removed, err := l.registry.Consume(ctx, pending.Token)
	if err != nil {
		return nil, err
	}
	if !removed {
		return &Result{Outcome: OutcomeExpired}, nil
	}

	event := CompletionEvent{
		DiscordID:  pending.DiscordID,
		GuildID:    pending.GuildID,
		KeycloakID: ssoSubject,
	}
	if err := l.queue.Publish(event); err != nil {
		return nil, fmt.Errorf("failed to publish completion event: %w", err)
	}

	l.metrics.CompletionQueueDepth.Set(float64(l.queue.Len()))
	l.logger.WithFields(map[string]interface{}{
		"discord_user": pending.DiscordID,
		"guild_id":     pending.GuildID,
	}).Info("Verification completed, event queued")
	return &Result{Outcome: OutcomeLinked, Pending: pending}, nil
}
