package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/store"
)

// PendingRegistry tracks in-flight verification tokens. Entries live in
// an in-process map for fast lookups and in the durable store under a
// TTL so they survive restarts. The durable store is authoritative; the
// map is a latency optimization only.
type PendingRegistry struct {
	store  store.Store
	logger *observability.Logger

	mu      sync.RWMutex
	entries map[string]PendingVerification

	// now is swapped in tests to exercise expiry.
	now func() time.Time
}

// NewPendingRegistry creates a registry backed by the given store.
func NewPendingRegistry(s store.Store, logger *observability.Logger) *PendingRegistry {
	return &PendingRegistry{
		store:   s,
		logger:  logger,
		entries: make(map[string]PendingVerification),
		now:     time.Now,
	}
}

// Create generates a fresh token for the requester and persists the
// pending record. If the durable write fails the token is not handed
// out and the in-process entry is rolled back.
func (r *PendingRegistry) Create(ctx context.Context, discordID, guildID, displayName string) (*PendingVerification, error) {
	pending := PendingVerification{
		Token:       uuid.NewString(),
		DiscordID:   discordID,
		GuildID:     guildID,
		DisplayName: displayName,
		CreatedAt:   r.now(),
	}

	payload, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending verification: %w", err)
	}

	r.mu.Lock()
	r.entries[pending.Token] = pending
	r.mu.Unlock()

	if err := r.store.SetWithTTL(ctx, store.PendingVerificationKey(pending.Token), string(payload), TokenTTL); err != nil {
		r.mu.Lock()
		delete(r.entries, pending.Token)
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to persist pending verification: %w", err)
	}

	return &pending, nil
}

// Lookup resolves a token. The in-process map is consulted first; a
// miss falls through to the durable store and repopulates the map.
// Entries past TokenTTL are treated as absent even if still cached.
func (r *PendingRegistry) Lookup(ctx context.Context, token string) (*PendingVerification, bool, error) {
	r.mu.RLock()
	pending, ok := r.entries[token]
	r.mu.RUnlock()

	if ok {
		if pending.Expired(r.now()) {
			r.mu.Lock()
			delete(r.entries, token)
			r.mu.Unlock()
			return nil, false, nil
		}
		return &pending, true, nil
	}

	raw, ok, err := r.store.Get(ctx, store.PendingVerificationKey(token))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pending verification: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, false, fmt.Errorf("failed to decode pending verification: %w", err)
	}
	if pending.Expired(r.now()) {
		return nil, false, nil
	}

	r.mu.Lock()
	r.entries[token] = pending
	r.mu.Unlock()

	return &pending, true, nil
}

// Consume deletes a token from both backing stores and reports whether
// this call removed it. Racing completions for the same token resolve
// here: the lock is held across the removal, so exactly one caller sees
// removed=true and gets to emit the completion event.
func (r *PendingRegistry) Consume(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, present := r.entries[token]
	delete(r.entries, token)

	if !present {
		// A restart or cache eviction leaves the entry durable-only.
		_, durable, err := r.store.Get(ctx, store.PendingVerificationKey(token))
		if err != nil {
			return false, fmt.Errorf("failed to read pending verification: %w", err)
		}
		if !durable {
			return false, nil
		}
	}

	if err := r.store.Delete(ctx, store.PendingVerificationKey(token)); err != nil {
		return false, fmt.Errorf("failed to delete pending verification: %w", err)
	}
	return true, nil
}
