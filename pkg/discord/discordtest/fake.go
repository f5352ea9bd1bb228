// Package discordtest provides an in-memory discord.Client fake for
// tests in packages that drive member and role operations.
package discordtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rolegate/rolegate/pkg/discord"
)

// FakeClient is an in-memory discord.Client. Guild state is mutated by
// the same calls the real platform would receive, so tests can assert
// on resulting members, roles, and messages.
type FakeClient struct {
	mu sync.Mutex

	BotID       string
	Members     map[string]*discord.Member // "guild/user"
	Roles       map[string][]discord.Role  // guild -> roles
	GuildCounts map[string]int

	DMs         map[string][]string         // user -> messages
	ChannelLogs map[string][]*discord.Embed // channel -> embeds
	FailOn      map[string]error            // op name -> forced error
	CreatedIDs  int                         // sequence for new role ids
	RoleChanges []string                    // audit trail: "add guild user role"
}

// NewFakeClient returns an empty fake with the bot user pre-seeded.
func NewFakeClient(botID string) *FakeClient {
	return &FakeClient{
		BotID:       botID,
		Members:     make(map[string]*discord.Member),
		Roles:       make(map[string][]discord.Role),
		GuildCounts: make(map[string]int),
		DMs:         make(map[string][]string),
		ChannelLogs: make(map[string][]*discord.Embed),
		FailOn:      make(map[string]error),
	}
}

func memberKey(guildID, userID string) string {
	return guildID + "/" + userID
}

// AddMember seeds a guild member.
func (f *FakeClient) AddMember(guildID string, m *discord.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[memberKey(guildID, m.UserID)] = m
}

// AddRoleDef seeds a guild role definition.
func (f *FakeClient) AddRoleDef(guildID string, r discord.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Roles[guildID] = append(f.Roles[guildID], r)
}

func (f *FakeClient) forced(op string) error {
	if err, ok := f.FailOn[op]; ok {
		return err
	}
	return nil
}

func (f *FakeClient) BotUserID() string { return f.BotID }

func (f *FakeClient) GetMember(ctx context.Context, guildID, userID string) (*discord.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("GetMember"); err != nil {
		return nil, err
	}
	m, ok := f.Members[memberKey(guildID, userID)]
	if !ok {
		return nil, discord.ErrNotFound
	}
	copied := *m
	copied.RoleIDs = append([]string(nil), m.RoleIDs...)
	return &copied, nil
}

func (f *FakeClient) ListRoles(ctx context.Context, guildID string) ([]discord.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("ListRoles"); err != nil {
		return nil, err
	}
	return append([]discord.Role(nil), f.Roles[guildID]...), nil
}

func (f *FakeClient) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("AddRole"); err != nil {
		return err
	}
	m, ok := f.Members[memberKey(guildID, userID)]
	if !ok {
		return discord.ErrNotFound
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	f.RoleChanges = append(f.RoleChanges, fmt.Sprintf("add %s %s %s", guildID, userID, roleID))
	return nil
}

func (f *FakeClient) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("RemoveRole"); err != nil {
		return err
	}
	m, ok := f.Members[memberKey(guildID, userID)]
	if !ok {
		return discord.ErrNotFound
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	f.RoleChanges = append(f.RoleChanges, fmt.Sprintf("remove %s %s %s", guildID, userID, roleID))
	return nil
}

func (f *FakeClient) CreateRole(ctx context.Context, guildID, name string, color int) (*discord.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("CreateRole"); err != nil {
		return nil, err
	}
	f.CreatedIDs++
	role := discord.Role{ID: fmt.Sprintf("created-%d", f.CreatedIDs), Name: name, Color: color}
	f.Roles[guildID] = append(f.Roles[guildID], role)
	return &role, nil
}

func (f *FakeClient) DeleteRole(ctx context.Context, guildID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("DeleteRole"); err != nil {
		return err
	}
	roles := f.Roles[guildID]
	for i, r := range roles {
		if r.ID == roleID {
			f.Roles[guildID] = append(roles[:i], roles[i+1:]...)
			return nil
		}
	}
	return discord.ErrNotFound
}

func (f *FakeClient) DirectMessage(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("DirectMessage"); err != nil {
		return err
	}
	f.DMs[userID] = append(f.DMs[userID], content)
	return nil
}

func (f *FakeClient) SendChannelMessage(ctx context.Context, channelID string, embed *discord.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("SendChannelMessage"); err != nil {
		return err
	}
	f.ChannelLogs[channelID] = append(f.ChannelLogs[channelID], embed)
	return nil
}

func (f *FakeClient) MemberCount(ctx context.Context, guildID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("MemberCount"); err != nil {
		return 0, err
	}
	return f.GuildCounts[guildID], nil
}
