package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/roles"
)

const (
	componentSetupMode   = "setup_mode"
	componentSetupCustom = "setup_custom"
	componentSetupSave   = "setup_save"

	interactionTimeout = 15 * time.Second
)

// Gateway connects the command handlers to the Discord gateway:
// registers the slash commands, dispatches interactions, and renders
// Reply values as interaction responses.
type Gateway struct {
	session *discord.Session
	handler *Handler
	logger  *observability.Logger
}

// NewGateway creates the gateway wiring for a session and handler.
func NewGateway(session *discord.Session, handler *Handler, logger *observability.Logger) *Gateway {
	return &Gateway{session: session, handler: handler, logger: logger}
}

// Start opens the gateway connection and registers the slash commands
// globally.
func (g *Gateway) Start() error {
	g.session.Raw().AddHandler(g.dispatch)

	if err := g.session.Open(); err != nil {
		return err
	}

	appID := g.session.Raw().State.User.ID
	if _, err := g.session.Raw().ApplicationCommandBulkOverwrite(appID, "", commandDefinitions()); err != nil {
		g.session.Close()
		return err
	}

	g.logger.Info("Gateway connected, commands registered")
	return nil
}

// Stop closes the gateway connection.
func (g *Gateway) Stop() error {
	return g.session.Close()
}

var adminOnly int64 = discordgo.PermissionAdministrator

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "verify",
			Description: "Verify your identity with your campus account",
		},
		{
			Name:        "unverify",
			Description: "Remove your verification, or another user's as an administrator",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to unverify (administrators only)",
				},
			},
		},
		{
			Name:        "userinfo",
			Description: "Show the campus account behind a verified user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to look up",
					Required:    true,
				},
			},
		},
		{
			Name:        "config",
			Description: "Show this server's verification configuration",
		},
		{
			Name:                     "setverifiedrole",
			Description:              "Set the role granted to verified users",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to grant",
					Required:    true,
				},
			},
		},
		{
			Name:                     "setlogchannel",
			Description:              "Set the channel verification events are logged to",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to log to",
					Required:    true,
				},
			},
		},
		{
			Name:                     "setuproles",
			Description:              "Configure which attribute roles this server maintains",
			DefaultMemberPermissions: &adminOnly,
		},
	}
}

func (g *Gateway) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	invokerID := i.Member.User.ID
	isAdmin := i.Member.Permissions&discordgo.PermissionAdministrator != 0

	var reply *Reply
	var err error

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "verify":
			reply, err = g.handler.HandleVerify(ctx, i.GuildID, invokerID)
		case "unverify":
			target := ""
			if len(data.Options) > 0 {
				target = data.Options[0].Value.(string)
			}
			reply, err = g.handler.HandleUnverify(ctx, i.GuildID, invokerID, target, isAdmin)
		case "userinfo":
			reply, err = g.handler.HandleUserInfo(ctx, i.GuildID, data.Options[0].Value.(string))
		case "config":
			reply, err = g.handler.HandleConfig(ctx, i.GuildID)
		case "setverifiedrole":
			reply, err = g.handler.HandleSetVerifiedRole(ctx, i.GuildID, data.Options[0].Value.(string))
		case "setlogchannel":
			reply, err = g.handler.HandleSetLogChannel(ctx, i.GuildID, data.Options[0].Value.(string))
		case "setuproles":
			reply, err = g.handler.HandleSetupRoles(ctx, i.GuildID, invokerID)
		default:
			return
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		switch data.CustomID {
		case componentSetupMode:
			reply, err = g.handler.HandleSetupModeSelected(ctx, i.GuildID, invokerID, data.Values[0])
		case componentSetupCustom:
			reply, err = g.handler.HandleSetupCustomSelected(ctx, i.GuildID, invokerID, data.Values)
		case componentSetupSave:
			reply, err = g.handler.HandleSetupSave(ctx, i.GuildID, invokerID)
		default:
			return
		}
	default:
		return
	}

	if err != nil {
		g.logger.WithError(err).WithField("guild_id", i.GuildID).Error("Command failed")
		reply = &Reply{Content: "Something went wrong. Please try again later.", Ephemeral: true}
	}

	if respondErr := s.InteractionRespond(i.Interaction, renderReply(reply)); respondErr != nil {
		g.logger.WithError(respondErr).Error("Failed to respond to interaction")
	}
}

// renderReply turns a handler Reply into an interaction response,
// including the wizard's message components.
func renderReply(reply *Reply) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{Content: reply.Content}
	if reply.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if reply.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{toMessageEmbed(reply.Embed)}
	}

	if reply.ModeSelect {
		data.Components = append(data.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{modeSelectMenu()},
		})
	}
	if reply.CustomSelect {
		data.Components = append(data.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{customSelectMenu()},
		})
	}
	if reply.SaveButton {
		data.Components = append(data.Components, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{discordgo.Button{
				Label:    "Save",
				Style:    discordgo.PrimaryButton,
				CustomID: componentSetupSave,
			}},
		})
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

func modeSelectMenu() discordgo.SelectMenu {
	return discordgo.SelectMenu{
		CustomID:    componentSetupMode,
		Placeholder: "Role mode",
		Options: []discordgo.SelectMenuOption{
			{Label: "None", Value: roles.ModeNone.String(), Description: "No attribute roles"},
			{Label: "Levels", Value: roles.ModeLevels.String(), Description: "Undergrad and Graduate roles"},
			{Label: "Classes", Value: roles.ModeClasses.String(), Description: "One role per class year"},
			{Label: "Custom", Value: roles.ModeCustom.String(), Description: "Pick roles yourself"},
		},
	}
}

func customSelectMenu() discordgo.SelectMenu {
	catalog := roles.Catalog()
	options := make([]discordgo.SelectMenuOption, 0, len(catalog))
	for _, key := range catalog {
		options = append(options, discordgo.SelectMenuOption{
			Label: key.DisplayName(),
			Value: key.String(),
		})
	}

	minValues := 1
	maxValues := len(options)
	return discordgo.SelectMenu{
		CustomID:    componentSetupCustom,
		Placeholder: "Roles to maintain",
		MinValues:   &minValues,
		MaxValues:   maxValues,
		Options:     options,
	}
}

func toMessageEmbed(e *discord.Embed) *discordgo.MessageEmbed {
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
