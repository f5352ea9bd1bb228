package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/roles"
	"github.com/rolegate/rolegate/pkg/verify"
)

// Consumer is the single reader of the completion queue. It processes
// events strictly in order, one at a time.
type Consumer struct {
	queue     *verify.CompletionQueue
	resolver  *roles.Resolver
	links     *verify.IdentityLinks
	directory SSODirectory
	client    discord.Client
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewConsumer wires the consumer's dependencies.
func NewConsumer(queue *verify.CompletionQueue, resolver *roles.Resolver, links *verify.IdentityLinks,
	directory SSODirectory, client discord.Client, logger *observability.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		queue:     queue,
		resolver:  resolver,
		links:     links,
		directory: directory,
		client:    client,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run receives completion events until the context is cancelled or the
// queue is closed and drained. Per-event failures never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		event, err := c.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, verify.ErrQueueClosed) {
				return nil
			}
			return err
		}
		c.metrics.CompletionQueueDepth.Set(float64(c.queue.Len()))
		c.Process(ctx, event)
	}
}

// Process applies one completion: verified role, attribute roles,
// persisted identity link, then best-effort notifications. The link is
// only persisted once the verified role step succeeded; a hard failure
// before that point is reported to the user as needing administrator
// follow-up.
func (c *Consumer) Process(ctx context.Context, event verify.CompletionEvent) {
	logger := c.logger.WithFields(map[string]interface{}{
		"discord_user": event.DiscordID,
		"guild_id":     event.GuildID,
	})

	config, err := c.resolver.Load(ctx, event.GuildID)
	if err != nil {
		c.fail(ctx, event, logger, "config", err)
		return
	}

	// An unconfigured verified role is operator misconfiguration, not
	// something to skip silently: the link is not persisted and the
	// user is told to involve an administrator.
	if config.VerifiedRoleID == "" {
		c.fail(ctx, event, logger, "unconfigured",
			fmt.Errorf("no verified role configured for guild %s", event.GuildID))
		return
	}
	if err := c.client.AddRole(ctx, event.GuildID, event.DiscordID, config.VerifiedRoleID); err != nil {
		c.fail(ctx, event, logger, "assign_role", err)
		return
	}

	c.assignAttributeRoles(ctx, config, event, logger)

	if err := c.links.Link(ctx, event.DiscordID, event.KeycloakID); err != nil {
		c.fail(ctx, event, logger, "persist_link", err)
		return
	}

	c.metrics.VerificationsCompleted.Inc()
	logger.Info("Verification processed")
	c.notify(ctx, config, event, logger)
}

// assignAttributeRoles maps the user's level and class attributes onto
// configured roles. A missing attribute or unmapped value is skipped;
// per-role assignment failures are logged and do not block the link.
func (c *Consumer) assignAttributeRoles(ctx context.Context, config *roles.Config, event verify.CompletionEvent, logger *observability.Logger) {
	if config.Mode == roles.ModeNone {
		return
	}

	user, err := c.directory.GetUser(ctx, event.KeycloakID)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch SSO user attributes, skipping attribute roles")
		return
	}

	attributes := []struct {
		category roles.Category
		value    string
	}{
		{roles.CategoryLevel, user.FirstAttribute("level")},
		{roles.CategoryClass, user.FirstAttribute("class")},
	}

	for _, attr := range attributes {
		roleID, ok := config.RoleForAttribute(attr.category, attr.value)
		if !ok {
			continue
		}
		if err := c.client.AddRole(ctx, event.GuildID, event.DiscordID, roleID); err != nil {
			logger.WithError(err).WithField("role_id", roleID).Warn("Failed to assign attribute role")
		}
	}
}

// fail records a hard processing failure and sends a best-effort DM so
// the user knows to involve an administrator instead of retrying.
func (c *Consumer) fail(ctx context.Context, event verify.CompletionEvent, logger *observability.Logger, reason string, err error) {
	logger.WithError(err).WithField("reason", reason).Error("Failed to process verification completion")
	c.metrics.VerificationsFailed.WithLabelValues(reason).Inc()

	message := "Your identity was verified, but finishing your server setup failed. Please contact a server administrator."
	if dmErr := c.client.DirectMessage(ctx, event.DiscordID, message); dmErr != nil {
		logger.WithError(dmErr).Warn("Failed to send failure DM")
	}
}

// notify sends the best-effort success notifications: a log-channel
// embed for operators and a DM to the user. Failures are logged only.
func (c *Consumer) notify(ctx context.Context, config *roles.Config, event verify.CompletionEvent, logger *observability.Logger) {
	if config.LogChannelID != "" {
		embed := &discord.Embed{
			Title:       "User verified",
			Description: fmt.Sprintf("<@%s> completed identity verification.", event.DiscordID),
			Color:       colorGreen,
		}
		if err := c.client.SendChannelMessage(ctx, config.LogChannelID, embed); err != nil {
			logger.WithError(err).Warn("Failed to send log channel message")
		}
	}

	if err := c.client.DirectMessage(ctx, event.DiscordID, "You are verified! Your roles have been assigned."); err != nil {
		logger.WithError(err).Warn("Failed to send success DM")
	}
}
