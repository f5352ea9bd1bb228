package roles

import (
	"context"
	"fmt"

	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/store"
)

// Action describes what the reconciler did with one role key.
type Action string

const (
	ActionCreated Action = "created"
	ActionReused  Action = "reused"
	ActionDeleted Action = "deleted"
	ActionKept    Action = "kept"
	ActionHealed  Action = "healed"
	ActionFailed  Action = "failed"
)

// ItemResult is the per-key outcome of a reconciliation run, returned
// for operator display.
type ItemResult struct {
	Key    Key
	Action Action
	RoleID string
	Err    error
}

// Reconciler converges a guild's live roles and persisted mappings onto
// a committed setup session. Each platform call is persisted to the
// store immediately after it succeeds, so a crash mid-run loses at most
// the tail of the diff. Per-item failures are logged and the rest of
// the diff proceeds.
type Reconciler struct {
	store    store.Store
	client   discord.Client
	resolver *Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewReconciler wires the reconciler's dependencies.
func NewReconciler(s store.Store, client discord.Client, resolver *Resolver,
	logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		store:    s,
		client:   client,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Commit applies a validated session: deletes roles the new mode no
// longer wants, creates or reuses roles it newly wants, self-heals kept
// roles that were deleted externally, and persists the new mode last.
// Re-running with an unchanged session and no external drift performs
// no platform calls.
func (r *Reconciler) Commit(ctx context.Context, session *Session) ([]ItemResult, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	guildID := session.GuildID
	logger := r.logger.WithField("guild_id", guildID)

	current, err := r.resolver.PersistedRoleKeys(ctx, guildID)
	if err != nil {
		return nil, err
	}

	desired := make(map[Key]bool)
	for _, key := range session.DesiredKeys() {
		desired[key] = true
	}

	live, err := r.client.ListRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}
	liveIDs := make(map[string]bool, len(live))
	liveByName := make(map[string]string, len(live))
	for _, role := range live {
		liveIDs[role.ID] = true
		liveByName[role.Name] = role.ID
	}

	var results []ItemResult

	// Roles the new mode no longer wants. A role already gone at the
	// platform still gets its mapping removed.
	for key, roleID := range current {
		if desired[key] {
			continue
		}
		if err := r.client.DeleteRole(ctx, guildID, roleID); err != nil && !discord.IsNotFound(err) {
			logger.WithError(err).WithField("role_key", key.String()).Error("Failed to delete role")
			results = append(results, ItemResult{Key: key, Action: ActionFailed, Err: err})
			continue
		}
		if err := r.store.Delete(ctx, roleStoreKey(guildID, key)); err != nil {
			logger.WithError(err).WithField("role_key", key.String()).Error("Failed to delete role mapping")
			results = append(results, ItemResult{Key: key, Action: ActionFailed, Err: err})
			continue
		}
		r.metrics.RolesDeleted.Inc()
		results = append(results, ItemResult{Key: key, Action: ActionDeleted, RoleID: roleID})
	}

	// Roles the new mode newly wants. A same-named role created
	// out-of-band is reused instead of duplicated.
	for _, key := range session.DesiredKeys() {
		if _, exists := current[key]; exists {
			continue
		}
		result := r.ensureRole(ctx, guildID, key, liveByName)
		if result.Err != nil {
			logger.WithError(result.Err).WithField("role_key", key.String()).Error("Failed to create role")
		}
		results = append(results, result)
	}

	// Kept roles: recreate any whose persisted id was deleted
	// externally, otherwise leave untouched.
	for key, roleID := range current {
		if !desired[key] {
			continue
		}
		if liveIDs[roleID] {
			results = append(results, ItemResult{Key: key, Action: ActionKept, RoleID: roleID})
			continue
		}
		result := r.ensureRole(ctx, guildID, key, liveByName)
		if result.Err != nil {
			logger.WithError(result.Err).WithField("role_key", key.String()).Error("Failed to recreate role")
		} else {
			result.Action = ActionHealed
			r.metrics.RolesHealed.Inc()
		}
		results = append(results, result)
	}

	// Mode goes last so a crash mid-run leaves the previous mode
	// governing the next diff.
	if err := r.store.Set(ctx, store.RoleModeKey(guildID), session.Mode.String()); err != nil {
		return results, fmt.Errorf("failed to persist role mode: %w", err)
	}

	logger.WithField("mode", session.Mode.String()).Info("Role reconciliation committed")
	return results, nil
}

// ensureRole resolves a role id for the key, reusing a live role with
// the canonical display name or creating a new one, and persists the
// mapping immediately.
func (r *Reconciler) ensureRole(ctx context.Context, guildID string, key Key, liveByName map[string]string) ItemResult {
	name := key.DisplayName()

	if roleID, ok := liveByName[name]; ok {
		if err := r.store.Set(ctx, roleStoreKey(guildID, key), roleID); err != nil {
			return ItemResult{Key: key, Action: ActionFailed, Err: err}
		}
		return ItemResult{Key: key, Action: ActionReused, RoleID: roleID}
	}

	role, err := r.client.CreateRole(ctx, guildID, name, key.Color())
	if err != nil {
		return ItemResult{Key: key, Action: ActionFailed, Err: err}
	}
	if err := r.store.Set(ctx, roleStoreKey(guildID, key), role.ID); err != nil {
		return ItemResult{Key: key, Action: ActionFailed, Err: err}
	}

	liveByName[name] = role.ID
	r.metrics.RolesCreated.Inc()
	return ItemResult{Key: key, Action: ActionCreated, RoleID: role.ID}
}
