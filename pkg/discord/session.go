package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Session implements Client over a discordgo session.
type Session struct {
	dg *discordgo.Session
}

// NewSession creates a Session from a bot token. The gateway connection
// is not opened here; callers open it once handlers are registered.
func NewSession(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Session{dg: dg}, nil
}

// Raw exposes the underlying discordgo session for gateway wiring
// (handler registration, command registration, Open/Close).
func (s *Session) Raw() *discordgo.Session {
	return s.dg
}

// Open connects to the gateway.
func (s *Session) Open() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

// Close closes the gateway connection.
func (s *Session) Close() error {
	return s.dg.Close()
}

// BotUserID returns the bot's own user ID.
func (s *Session) BotUserID() string {
	if s.dg.State != nil && s.dg.State.User != nil {
		return s.dg.State.User.ID
	}
	return ""
}

// GetMember fetches a guild member.
func (s *Session) GetMember(ctx context.Context, guildID, userID string) (*Member, error) {
	m, err := s.dg.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, "failed to fetch member")
	}

	display := m.Nick
	if display == "" && m.User != nil {
		display = m.User.GlobalName
		if display == "" {
			display = m.User.Username
		}
	}

	member := &Member{
		UserID:      userID,
		DisplayName: display,
		RoleIDs:     m.Roles,
	}
	if m.User != nil {
		member.Username = m.User.Username
	}
	return member, nil
}

// ListRoles lists all roles in a guild.
func (s *Session) ListRoles(ctx context.Context, guildID string) ([]Role, error) {
	raw, err := s.dg.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, "failed to list roles")
	}

	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, Role{
			ID:       r.ID,
			Name:     r.Name,
			Color:    r.Color,
			Position: r.Position,
			Managed:  r.Managed,
		})
	}
	return roles, nil
}

// AddRole grants a role to a member.
func (s *Session) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := s.dg.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to add role")
	}
	return nil
}

// RemoveRole revokes a role from a member.
func (s *Session) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := s.dg.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to remove role")
	}
	return nil
}

// CreateRole creates a role with the given display name and color.
func (s *Session) CreateRole(ctx context.Context, guildID, name string, color int) (*Role, error) {
	params := &discordgo.RoleParams{
		Name:  name,
		Color: &color,
	}
	r, err := s.dg.GuildRoleCreate(guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err, "failed to create role")
	}
	return &Role{ID: r.ID, Name: r.Name, Color: r.Color, Position: r.Position}, nil
}

// DeleteRole deletes a role.
func (s *Session) DeleteRole(ctx context.Context, guildID, roleID string) error {
	if err := s.dg.GuildRoleDelete(guildID, roleID, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to delete role")
	}
	return nil
}

// DirectMessage sends a DM to a user.
func (s *Session) DirectMessage(ctx context.Context, userID, content string) error {
	channel, err := s.dg.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify(err, "failed to open DM channel")
	}
	if _, err := s.dg.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to send DM")
	}
	return nil
}

// SendChannelMessage sends an embed to a guild channel.
func (s *Session) SendChannelMessage(ctx context.Context, channelID string, embed *Embed) error {
	if _, err := s.dg.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed), discordgo.WithContext(ctx)); err != nil {
		return classify(err, "failed to send channel message")
	}
	return nil
}

// MemberCount returns the guild's approximate member count.
func (s *Session) MemberCount(ctx context.Context, guildID string) (int, error) {
	guild, err := s.dg.GuildWithCounts(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, classify(err, "failed to fetch guild")
	}
	return guild.ApproximateMemberCount, nil
}

func toMessageEmbed(e *Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

// classify maps platform 404s onto ErrNotFound so callers can treat
// already-gone entities as settled state.
func classify(err error, msg string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == 404 {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
