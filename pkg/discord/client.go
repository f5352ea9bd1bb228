package discord

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a member, role, or channel no longer
// exists on the platform.
var ErrNotFound = errors.New("discord: not found")

// IsNotFound reports whether err means the referenced entity is gone.
// Removing a role that was deleted out from under us is treated as
// success by callers, so they classify rather than fail.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Member is a guild member: the user plus their per-guild role set.
type Member struct {
	UserID      string
	Username    string
	DisplayName string
	RoleIDs     []string
}

// HasRole reports whether the member currently holds the role.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a guild role.
type Role struct {
	ID       string
	Name     string
	Color    int
	Position int
	Managed  bool
}

// Embed is a rich message payload for log-channel notifications.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
}

// EmbedField is a single name/value pair inside an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Client is the slice of the Discord API the verification and role
// flows use. Session implements it against the real platform.
type Client interface {
	// GetMember fetches a guild member. Returns ErrNotFound when the
	// user is not in the guild.
	GetMember(ctx context.Context, guildID, userID string) (*Member, error)
	// ListRoles lists all roles in a guild.
	ListRoles(ctx context.Context, guildID string) ([]Role, error)
	// AddRole grants a role to a member. Granting a role the member
	// already holds is a no-op on the platform side.
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	// RemoveRole revokes a role from a member.
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	// CreateRole creates a role with the given display name and color,
	// returning the new role.
	CreateRole(ctx context.Context, guildID, name string, color int) (*Role, error)
	// DeleteRole deletes a role. Deleting a role that no longer exists
	// returns ErrNotFound.
	DeleteRole(ctx context.Context, guildID, roleID string) error
	// DirectMessage sends a DM to a user, creating the DM channel if
	// needed.
	DirectMessage(ctx context.Context, userID, content string) error
	// SendChannelMessage sends an embed to a guild channel.
	SendChannelMessage(ctx context.Context, channelID string, embed *Embed) error
	// MemberCount returns the guild's approximate member count.
	MemberCount(ctx context.Context, guildID string) (int, error)
	// BotUserID returns the bot's own user ID.
	BotUserID() string
}

// BotTopRolePosition returns the highest role position the bot holds in
// the guild. Role position ordering is how the platform decides whether
// the bot may assign a given role.
func BotTopRolePosition(ctx context.Context, c Client, guildID string) (int, error) {
	bot, err := c.GetMember(ctx, guildID, c.BotUserID())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch bot member: %w", err)
	}

	roles, err := c.ListRoles(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to list guild roles: %w", err)
	}

	byID := make(map[string]Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	top := 0
	for _, id := range bot.RoleIDs {
		if role, ok := byID[id]; ok && role.Position > top {
			top = role.Position
		}
	}
	return top, nil
}

// CanManageRole reports whether the bot's top role outranks the target
// role, which is required for the bot to grant or revoke it.
func CanManageRole(ctx context.Context, c Client, guildID string, target Role) (bool, error) {
	top, err := BotTopRolePosition(ctx, c, guildID)
	if err != nil {
		return false, err
	}
	return top > target.Position, nil
}
