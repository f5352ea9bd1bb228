package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/keycloak"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/roles"
	"github.com/rolegate/rolegate/pkg/store"
	"github.com/rolegate/rolegate/pkg/verify"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
)

// SSODirectory is the slice of the identity provider the command layer
// reads user records from. keycloak.Client implements it.
type SSODirectory interface {
	GetUser(ctx context.Context, userID string) (*keycloak.User, error)
}

// Reply is what a command handler wants shown to the invoker. The
// gateway renders it as an interaction response.
type Reply struct {
	Content   string
	Embed     *discord.Embed
	Ephemeral bool

	// Wizard prompts. The gateway renders the matching message
	// components.
	ModeSelect   bool
	CustomSelect bool
	SaveButton   bool
}

// Handler implements the slash commands.
type Handler struct {
	store      store.Store
	registry   *verify.PendingRegistry
	links      *verify.IdentityLinks
	resolver   *roles.Resolver
	reconciler *roles.Reconciler
	sessions   *roles.SessionTable
	directory  SSODirectory
	client     discord.Client
	logger     *observability.Logger
	metrics    *observability.Metrics
	appURL     string
}

// HandlerParams collects the handler's dependencies.
type HandlerParams struct {
	Store      store.Store
	Registry   *verify.PendingRegistry
	Links      *verify.IdentityLinks
	Resolver   *roles.Resolver
	Reconciler *roles.Reconciler
	Sessions   *roles.SessionTable
	Directory  SSODirectory
	Client     discord.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
	AppURL     string
}

// NewHandler creates the command handler.
func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		store:      p.Store,
		registry:   p.Registry,
		links:      p.Links,
		resolver:   p.Resolver,
		reconciler: p.Reconciler,
		sessions:   p.Sessions,
		directory:  p.Directory,
		client:     p.Client,
		logger:     p.Logger,
		metrics:    p.Metrics,
		appURL:     strings.TrimSuffix(p.AppURL, "/"),
	}
}

// VerifyURL returns the web entry point for a pending token.
func (h *Handler) VerifyURL(token string) string {
	return fmt.Sprintf("%s/verify?state=%s", h.appURL, token)
}

// HandleVerify starts a verification, or fast-paths a user whose
// identity is already linked by ensuring the verified role in this
// guild without another trip through the SSO flow.
func (h *Handler) HandleVerify(ctx context.Context, guildID, userID string) (*Reply, error) {
	if _, linked, err := h.links.SSOUserFor(ctx, userID); err != nil {
		return nil, err
	} else if linked {
		return h.verifyFastPath(ctx, guildID, userID)
	}

	member, err := h.client.GetMember(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}

	pending, err := h.registry.Create(ctx, userID, guildID, member.DisplayName)
	if err != nil {
		return nil, err
	}
	h.metrics.VerificationsStarted.Inc()

	return &Reply{
		Content: fmt.Sprintf(
			"Click the link below to verify your identity. It expires in 10 minutes.\n%s",
			h.VerifyURL(pending.Token)),
		Ephemeral: true,
	}, nil
}

// verifyFastPath handles /verify from an already-linked user: assign
// the verified role in this guild if it is configured and missing.
func (h *Handler) verifyFastPath(ctx context.Context, guildID, userID string) (*Reply, error) {
	config, err := h.resolver.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if config.VerifiedRoleID == "" {
		return &Reply{
			Content:   "You are already verified, but this server has no verified role configured. Ask an administrator to run /setverifiedrole.",
			Ephemeral: true,
		}, nil
	}

	member, err := h.client.GetMember(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w", err)
	}
	if member.HasRole(config.VerifiedRoleID) {
		return &Reply{Content: "You are already verified on this server.", Ephemeral: true}, nil
	}

	if err := h.client.AddRole(ctx, guildID, userID, config.VerifiedRoleID); err != nil {
		return nil, fmt.Errorf("failed to assign verified role: %w", err)
	}
	return &Reply{Content: "You were already verified, so the verified role has been assigned.", Ephemeral: true}, nil
}

// HandleUnverify removes a user's identity link and their managed
// roles. Unverifying another user requires administrator permission.
func (h *Handler) HandleUnverify(ctx context.Context, guildID, invokerID, targetID string, invokerIsAdmin bool) (*Reply, error) {
	if targetID == "" {
		targetID = invokerID
	}
	if targetID != invokerID && !invokerIsAdmin {
		return &Reply{Content: "Only administrators can unverify other users.", Ephemeral: true}, nil
	}

	if err := h.links.Unlink(ctx, targetID); err != nil {
		if errors.Is(err, verify.ErrNotLinked) {
			return &Reply{Content: "That user is not verified.", Ephemeral: true}, nil
		}
		return nil, err
	}

	config, err := h.resolver.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}
	h.removeManagedRoles(ctx, config, targetID)

	if config.LogChannelID != "" {
		embed := &discord.Embed{
			Title:       "User unverified",
			Description: fmt.Sprintf("<@%s> was unverified by <@%s>.", targetID, invokerID),
			Color:       colorOrange,
		}
		if err := h.client.SendChannelMessage(ctx, config.LogChannelID, embed); err != nil {
			h.logger.WithError(err).WithField("guild_id", guildID).Warn("Failed to send log channel message")
		}
	}

	return &Reply{Content: fmt.Sprintf("<@%s> has been unverified.", targetID), Ephemeral: true}, nil
}

// removeManagedRoles strips the verified role and every configured
// attribute role from the member. Failures are logged per role; a
// member who already left the guild is not an error.
func (h *Handler) removeManagedRoles(ctx context.Context, config *roles.Config, userID string) {
	member, err := h.client.GetMember(ctx, config.GuildID, userID)
	if err != nil {
		if !discord.IsNotFound(err) {
			h.logger.WithError(err).WithField("guild_id", config.GuildID).Warn("Failed to fetch member for role removal")
		}
		return
	}

	managed := make([]string, 0, len(config.RoleIDs)+1)
	if config.VerifiedRoleID != "" {
		managed = append(managed, config.VerifiedRoleID)
	}
	for _, id := range config.RoleIDs {
		managed = append(managed, id)
	}

	for _, roleID := range managed {
		if !member.HasRole(roleID) {
			continue
		}
		if err := h.client.RemoveRole(ctx, config.GuildID, userID, roleID); err != nil && !discord.IsNotFound(err) {
			h.logger.WithError(err).WithFields(map[string]interface{}{
				"guild_id": config.GuildID,
				"role_id":  roleID,
			}).Warn("Failed to remove role")
		}
	}
}

// HandleUserInfo shows the SSO record behind a member's verification.
func (h *Handler) HandleUserInfo(ctx context.Context, guildID, targetID string) (*Reply, error) {
	keycloakID, linked, err := h.links.SSOUserFor(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return &Reply{Content: "That user is not verified.", Ephemeral: true}, nil
	}

	user, err := h.directory.GetUser(ctx, keycloakID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SSO user: %w", err)
	}

	embed := &discord.Embed{
		Title: "User information",
		Color: colorGreen,
		Fields: []discord.EmbedField{
			{Name: "Username", Value: user.Username, Inline: true},
			{Name: "Name", Value: user.FullName(), Inline: true},
		},
	}
	if user.Email != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{Name: "Email", Value: user.Email, Inline: true})
	}
	if level := user.FirstAttribute("level"); level != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{Name: "Level", Value: level, Inline: true})
	}
	if class := user.FirstAttribute("class"); class != "" {
		embed.Fields = append(embed.Fields, discord.EmbedField{Name: "Class", Value: class, Inline: true})
	}
	if at, ok, err := h.links.LinkedAt(ctx, targetID); err == nil && ok {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name: "Verified", Value: at.Format("2006-01-02 15:04 MST"), Inline: true,
		})
	}

	return &Reply{Embed: embed, Ephemeral: true}, nil
}

// HandleConfig summarizes the guild's verification configuration and
// progress.
func (h *Handler) HandleConfig(ctx context.Context, guildID string) (*Reply, error) {
	config, err := h.resolver.Load(ctx, guildID)
	if err != nil {
		return nil, err
	}

	verifiedRole := "not configured"
	if config.VerifiedRoleID != "" {
		verifiedRole = fmt.Sprintf("<@&%s>", config.VerifiedRoleID)
	}
	logChannel := "not configured"
	if config.LogChannelID != "" {
		logChannel = fmt.Sprintf("<#%s>", config.LogChannelID)
	}

	embed := &discord.Embed{
		Title: "Verification configuration",
		Color: colorGreen,
		Fields: []discord.EmbedField{
			{Name: "Verified role", Value: verifiedRole, Inline: true},
			{Name: "Role mode", Value: config.Mode.String(), Inline: true},
			{Name: "Log channel", Value: logChannel, Inline: true},
		},
	}

	// Verified-count progress is display-only: the count is a
	// best-effort scan across all guilds the links span.
	verified, err := h.links.Count(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to count identity links")
		return &Reply{Embed: embed, Ephemeral: true}, nil
	}
	total, err := h.client.MemberCount(ctx, guildID)
	if err != nil {
		h.logger.WithError(err).WithField("guild_id", guildID).Warn("Failed to fetch member count")
		return &Reply{Embed: embed, Ephemeral: true}, nil
	}

	embed.Fields = append(embed.Fields, discord.EmbedField{
		Name:  "Verified members",
		Value: fmt.Sprintf("%s %d/%d", progressBar(verified, total, 10), verified, total),
	})
	return &Reply{Embed: embed, Ephemeral: true}, nil
}

// progressBar renders a fixed-width unicode bar for n of total.
func progressBar(n, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := n * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// HandleSetVerifiedRole persists the guild's verified role after
// confirming the bot can actually manage it.
func (h *Handler) HandleSetVerifiedRole(ctx context.Context, guildID, roleID string) (*Reply, error) {
	live, err := h.client.ListRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}

	var target *discord.Role
	for i := range live {
		if live[i].ID == roleID {
			target = &live[i]
			break
		}
	}
	if target == nil {
		return &Reply{Content: "That role no longer exists.", Ephemeral: true}, nil
	}

	manageable, err := discord.CanManageRole(ctx, h.client, guildID, *target)
	if err != nil {
		return nil, err
	}
	if !manageable {
		return &Reply{
			Content:   "The bot's highest role must be above the chosen role. Move the bot's role up and try again.",
			Ephemeral: true,
		}, nil
	}

	if err := h.store.Set(ctx, store.VerifiedRoleKey(guildID), roleID); err != nil {
		return nil, fmt.Errorf("failed to persist verified role: %w", err)
	}
	return &Reply{Content: fmt.Sprintf("Verified role set to <@&%s>.", roleID), Ephemeral: true}, nil
}

// HandleSetLogChannel persists the guild's log channel. The channel is
// validated by sending the confirmation embed to it before the setting
// is stored.
func (h *Handler) HandleSetLogChannel(ctx context.Context, guildID, channelID string) (*Reply, error) {
	embed := &discord.Embed{
		Title:       "Log channel configured",
		Description: "Verification events for this server will be posted here.",
		Color:       colorGreen,
	}
	if err := h.client.SendChannelMessage(ctx, channelID, embed); err != nil {
		return &Reply{
			Content:   "Could not post to that channel. Pick a text channel the bot can send messages in.",
			Ephemeral: true,
		}, nil
	}

	if err := h.store.Set(ctx, store.LogChannelKey(guildID), channelID); err != nil {
		return nil, fmt.Errorf("failed to persist log channel: %w", err)
	}
	return &Reply{Content: fmt.Sprintf("Log channel set to <#%s>.", channelID), Ephemeral: true}, nil
}
