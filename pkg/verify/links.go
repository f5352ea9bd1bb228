package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/rolegate/rolegate/pkg/store"
)

// IdentityLinks persists the bidirectional Discord<->Keycloak mapping.
// Both directions plus a linked-at timestamp are written together; a
// conflict on either side fails the whole link with zero mutation.
type IdentityLinks struct {
	store store.Store
}

// NewIdentityLinks creates the mapping layer over the given store.
func NewIdentityLinks(s store.Store) *IdentityLinks {
	return &IdentityLinks{store: s}
}

// Link binds a Discord user to a Keycloak account. Linking the same
// pair twice is a no-op. If either side is already bound to a different
// counterpart, Link returns ErrIdentityConflict and writes nothing.
func (l *IdentityLinks) Link(ctx context.Context, discordID, keycloakID string) error {
	existingKC, ok, err := l.store.Get(ctx, store.DiscordToKeycloakKey(discordID))
	if err != nil {
		return fmt.Errorf("failed to read identity link: %w", err)
	}
	if ok && existingKC != keycloakID {
		return ErrIdentityConflict
	}

	existingDiscord, ok, err := l.store.Get(ctx, store.KeycloakToDiscordKey(keycloakID))
	if err != nil {
		return fmt.Errorf("failed to read identity link: %w", err)
	}
	if ok && existingDiscord != discordID {
		return ErrIdentityConflict
	}
	if ok && existingKC == keycloakID {
		// Same pair, already linked.
		return nil
	}

	if err := l.store.Set(ctx, store.DiscordToKeycloakKey(discordID), keycloakID); err != nil {
		return fmt.Errorf("failed to persist identity link: %w", err)
	}
	if err := l.store.Set(ctx, store.KeycloakToDiscordKey(keycloakID), discordID); err != nil {
		return fmt.Errorf("failed to persist identity link: %w", err)
	}
	if err := l.store.Set(ctx, store.VerifiedAtKey(discordID), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to persist link timestamp: %w", err)
	}
	return nil
}

// Unlink removes both directions of a Discord user's link plus the
// linked-at timestamp. Returns ErrNotLinked when no link exists.
func (l *IdentityLinks) Unlink(ctx context.Context, discordID string) error {
	keycloakID, ok, err := l.store.Get(ctx, store.DiscordToKeycloakKey(discordID))
	if err != nil {
		return fmt.Errorf("failed to read identity link: %w", err)
	}
	if !ok {
		return ErrNotLinked
	}

	keys := []string{
		store.DiscordToKeycloakKey(discordID),
		store.KeycloakToDiscordKey(keycloakID),
		store.VerifiedAtKey(discordID),
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete identity link: %w", err)
	}
	return nil
}

// SSOUserFor resolves the Keycloak account linked to a Discord user.
func (l *IdentityLinks) SSOUserFor(ctx context.Context, discordID string) (string, bool, error) {
	return l.store.Get(ctx, store.DiscordToKeycloakKey(discordID))
}

// PlatformUserFor resolves the Discord user linked to a Keycloak
// account.
func (l *IdentityLinks) PlatformUserFor(ctx context.Context, keycloakID string) (string, bool, error) {
	return l.store.Get(ctx, store.KeycloakToDiscordKey(keycloakID))
}

// LinkedAt returns when the Discord user's link was persisted.
func (l *IdentityLinks) LinkedAt(ctx context.Context, discordID string) (time.Time, bool, error) {
	raw, ok, err := l.store.Get(ctx, store.VerifiedAtKey(discordID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse link timestamp: %w", err)
	}
	return at, true, nil
}

// Count returns the number of persisted links. It is a best-effort
// SCAN-based count for display, not a correctness primitive.
func (l *IdentityLinks) Count(ctx context.Context) (int, error) {
	keys, err := l.store.Keys(ctx, store.IdentityLinkPattern())
	if err != nil {
		return 0, fmt.Errorf("failed to count identity links: %w", err)
	}
	return len(keys), nil
}
