package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rolegate/rolegate/pkg/roles"
)

// HandleSetupRoles opens the role setup wizard, replacing any wizard
// the operator already had in progress for this guild.
func (h *Handler) HandleSetupRoles(ctx context.Context, guildID, operatorID string) (*Reply, error) {
	h.sessions.Begin(guildID, operatorID)
	return &Reply{
		Content:    "Choose which attribute roles this server should maintain:",
		Ephemeral:  true,
		ModeSelect: true,
	}, nil
}

// HandleSetupModeSelected records the operator's mode choice. Custom
// mode continues to a role multiselect; None commits immediately since
// there is nothing further to choose; other modes show a preview with a
// save button.
func (h *Handler) HandleSetupModeSelected(ctx context.Context, guildID, operatorID, value string) (*Reply, error) {
	mode := roles.ParseMode(value)

	if err := h.sessions.SelectMode(guildID, operatorID, mode); err != nil {
		if errors.Is(err, roles.ErrNoSession) {
			return &Reply{Content: "This wizard has expired. Run /setuproles again.", Ephemeral: true}, nil
		}
		return nil, err
	}

	switch mode {
	case roles.ModeNone:
		return h.HandleSetupSave(ctx, guildID, operatorID)
	case roles.ModeCustom:
		return &Reply{
			Content:      "Select the roles to maintain:",
			Ephemeral:    true,
			CustomSelect: true,
		}, nil
	default:
		session, ok := h.sessions.Get(guildID, operatorID)
		if !ok {
			return &Reply{Content: "This wizard has expired. Run /setuproles again.", Ephemeral: true}, nil
		}
		return &Reply{
			Content:    "The following roles will be maintained:\n" + previewRoles(session.DesiredKeys()),
			Ephemeral:  true,
			SaveButton: true,
		}, nil
	}
}

// HandleSetupCustomSelected records the operator's custom role
// selection and shows the preview.
func (h *Handler) HandleSetupCustomSelected(ctx context.Context, guildID, operatorID string, values []string) (*Reply, error) {
	keys := make([]roles.Key, 0, len(values))
	for _, value := range values {
		key, err := roles.ParseKey(value)
		if err != nil {
			return nil, fmt.Errorf("bad wizard selection: %w", err)
		}
		keys = append(keys, key)
	}

	if err := h.sessions.SetCustomKeys(guildID, operatorID, keys); err != nil {
		if errors.Is(err, roles.ErrNoSession) {
			return &Reply{Content: "This wizard has expired. Run /setuproles again.", Ephemeral: true}, nil
		}
		return nil, err
	}

	return &Reply{
		Content:    "The following roles will be maintained:\n" + previewRoles(keys),
		Ephemeral:  true,
		SaveButton: true,
	}, nil
}

// HandleSetupSave commits the wizard. The session is taken out of the
// table first, so a failed commit requires restarting the wizard.
func (h *Handler) HandleSetupSave(ctx context.Context, guildID, operatorID string) (*Reply, error) {
	session, err := h.sessions.Take(guildID, operatorID)
	if err != nil {
		return &Reply{Content: "This wizard has expired. Run /setuproles again.", Ephemeral: true}, nil
	}

	results, err := h.reconciler.Commit(ctx, session)
	if err != nil {
		if errors.Is(err, roles.ErrNoRolesSelected) || errors.Is(err, roles.ErrModeNotSelected) {
			return &Reply{Content: "Nothing was selected. Run /setuproles again.", Ephemeral: true}, nil
		}
		return nil, err
	}

	return &Reply{
		Content:   summarizeCommit(session.Mode, results),
		Ephemeral: true,
	}, nil
}

func previewRoles(keys []roles.Key) string {
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, "• "+key.DisplayName())
	}
	return strings.Join(lines, "\n")
}

func summarizeCommit(mode roles.Mode, results []roles.ItemResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role mode set to **%s**.\n", mode)

	failed := 0
	for _, result := range results {
		switch result.Action {
		case roles.ActionFailed:
			failed++
			fmt.Fprintf(&b, "• %s: failed\n", result.Key.DisplayName())
		case roles.ActionDeleted:
			fmt.Fprintf(&b, "• %s: removed\n", result.Key.DisplayName())
		default:
			fmt.Fprintf(&b, "• %s: <@&%s>\n", result.Key.DisplayName(), result.RoleID)
		}
	}
	if failed > 0 {
		fmt.Fprintf(&b, "%d role(s) could not be updated. Run /setuproles again to retry.", failed)
	}
	return strings.TrimRight(b.String(), "\n")
}
