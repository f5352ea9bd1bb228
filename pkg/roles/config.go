package roles

import (
	"context"
	"fmt"

	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/store"
)

// Config is a guild's resolved role configuration. Role ids that no
// longer exist in the guild have already been dropped by the resolver.
type Config struct {
	GuildID        string
	VerifiedRoleID string
	Mode           Mode
	RoleIDs        map[Key]string
	LogChannelID   string
}

// RoleIDFor returns the live role id mapped to the key, if configured.
func (c *Config) RoleIDFor(key Key) (string, bool) {
	id, ok := c.RoleIDs[key]
	return id, ok
}

// RoleForAttribute maps an SSO attribute value to a configured role id
// under the config's mode. A miss means the guild does not maintain a
// role for that value.
func (c *Config) RoleForAttribute(category Category, value string) (string, bool) {
	if value == "" {
		return "", false
	}
	switch c.Mode {
	case ModeLevels:
		if category != CategoryLevel {
			return "", false
		}
	case ModeClasses:
		if category != CategoryClass {
			return "", false
		}
	case ModeCustom:
	default:
		return "", false
	}
	return c.RoleIDFor(Key{Category: category, Name: value})
}

// roleStoreKey returns the store key holding the role id mapping for k.
func roleStoreKey(guildID string, k Key) string {
	if k.Category == CategoryLevel {
		return store.LevelRoleKey(guildID, k.Name)
	}
	return store.ClassRoleKey(guildID, k.Name)
}

// Resolver loads guild role configuration from the store, dropping
// mappings whose role ids no longer exist in the guild. The store is
// not mutated; a later reconciliation run overwrites stale entries.
type Resolver struct {
	store  store.Store
	client discord.Client
	logger *observability.Logger
}

// NewResolver creates a resolver over the given store and platform
// client.
func NewResolver(s store.Store, client discord.Client, logger *observability.Logger) *Resolver {
	return &Resolver{store: s, client: client, logger: logger}
}

// Load reads and validates the guild's role configuration.
func (r *Resolver) Load(ctx context.Context, guildID string) (*Config, error) {
	config := &Config{
		GuildID: guildID,
		RoleIDs: make(map[Key]string),
	}

	rawMode, _, err := r.store.Get(ctx, store.RoleModeKey(guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to read role mode: %w", err)
	}
	config.Mode = ParseMode(rawMode)

	verifiedID, _, err := r.store.Get(ctx, store.VerifiedRoleKey(guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to read verified role: %w", err)
	}

	logChannel, _, err := r.store.Get(ctx, store.LogChannelKey(guildID))
	if err != nil {
		return nil, fmt.Errorf("failed to read log channel: %w", err)
	}
	config.LogChannelID = logChannel

	// The catalog is closed, so persisted mappings are enumerated by
	// probing each catalog key instead of scanning.
	mapped := make(map[Key]string)
	for _, key := range Catalog() {
		id, ok, err := r.store.Get(ctx, roleStoreKey(guildID, key))
		if err != nil {
			return nil, fmt.Errorf("failed to read role mapping: %w", err)
		}
		if ok {
			mapped[key] = id
		}
	}

	live, err := r.client.ListRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}
	liveIDs := make(map[string]bool, len(live))
	for _, role := range live {
		liveIDs[role.ID] = true
	}

	if verifiedID != "" && !liveIDs[verifiedID] {
		r.logger.WithField("guild_id", guildID).
			Warn("Configured verified role no longer exists, treating as unset")
		verifiedID = ""
	}
	config.VerifiedRoleID = verifiedID

	for key, id := range mapped {
		if !liveIDs[id] {
			r.logger.WithFields(map[string]interface{}{
				"guild_id": guildID,
				"role_key": key.String(),
			}).Warn("Configured role no longer exists, treating as unset")
			continue
		}
		config.RoleIDs[key] = id
	}

	return config, nil
}

// PersistedRoleKeys returns every catalog key with a persisted mapping,
// regardless of whether the role still exists. The reconciler uses this
// to re-derive the current set rather than trusting a cached desired
// set from a different mode.
func (r *Resolver) PersistedRoleKeys(ctx context.Context, guildID string) (map[Key]string, error) {
	mapped := make(map[Key]string)
	for _, key := range Catalog() {
		id, ok, err := r.store.Get(ctx, roleStoreKey(guildID, key))
		if err != nil {
			return nil, fmt.Errorf("failed to read role mapping: %w", err)
		}
		if ok {
			mapped[key] = id
		}
	}
	return mapped, nil
}
