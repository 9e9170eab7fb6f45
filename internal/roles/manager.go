// Package roles implements role grant/revoke operations, both for a single
// member and in bulk across everyone holding a target role. Bulk runs are
// paced with a rate limiter to stay under the platform's write limits.
package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Mode selects the direction of a role change.
type Mode string

const (
	ModeGrant  Mode = "grant"
	ModeRevoke Mode = "revoke"
)

// RoleAPI is the slice of *discordgo.Session the manager needs.
type RoleAPI interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Hierarchy captures what the bot is allowed to touch in a guild, resolved
// once per command from the gateway state.
type Hierarchy struct {
	GuildID        string
	OwnerID        string
	BotTopPosition int
	ManageRoles    bool
}

// CanManageRole reports whether the bot may assign or remove role: it needs
// Manage Roles, the role must not be @everyone, and the role must sit below
// the bot's own top role.
func (h Hierarchy) CanManageRole(role *discordgo.Role) bool {
	if role == nil || !h.ManageRoles {
		return false
	}
	if role.ID == h.GuildID {
		return false
	}
	return role.Position < h.BotTopPosition
}

// CanEditMember reports whether the bot may modify a member: never the guild
// owner, never anyone whose top role is at or above the bot's.
func (h Hierarchy) CanEditMember(memberID string, memberTopPosition int) bool {
	if memberID == h.OwnerID {
		return false
	}
	return memberTopPosition < h.BotTopPosition
}

// HasRole reports whether the member currently holds roleID.
func HasRole(m *discordgo.Member, roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// FilterTargets picks the members holding targetRoleID, skipping bot
// accounts unless includeBots is set.
func FilterTargets(members []*discordgo.Member, targetRoleID string, includeBots bool) []*discordgo.Member {
	var out []*discordgo.Member
	for _, m := range members {
		if !HasRole(m, targetRoleID) {
			continue
		}
		if !includeBots && m.User != nil && m.User.Bot {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SortByPosition orders roles highest first, for listing.
func SortByPosition(roles []*discordgo.Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Position > roles[j].Position })
}

// Manager applies role changes through the REST API.
type Manager struct {
	api     RoleAPI
	limiter *rate.Limiter
}

// NewManager creates a manager pacing bulk writes at one every 200ms.
func NewManager(api RoleAPI) *Manager {
	return &Manager{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Apply changes a single member's role membership.
func (m *Manager) Apply(guildID, userID, roleID string, mode Mode) error {
	var err error
	switch mode {
	case ModeGrant:
		err = m.api.GuildMemberRoleAdd(guildID, userID, roleID)
	case ModeRevoke:
		err = m.api.GuildMemberRoleRemove(guildID, userID, roleID)
	default:
		return fmt.Errorf("unknown role mode %q", mode)
	}
	if err != nil {
		return fmt.Errorf("%s role %s for %s: %w", mode, roleID, userID, err)
	}
	return nil
}

// BulkApply changes role membership for every listed member, skipping those
// that already match the desired state. Individual failures are logged and
// skipped; the returned count is the number of members actually changed.
func (m *Manager) BulkApply(ctx context.Context, guildID string, members []*discordgo.Member, roleID string, mode Mode) (int, error) {
	changed := 0
	for _, member := range members {
		if member.User == nil {
			continue
		}
		has := HasRole(member, roleID)
		if (mode == ModeGrant && has) || (mode == ModeRevoke && !has) {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return changed, fmt.Errorf("bulk %s interrupted: %w", mode, err)
		}
		if err := m.Apply(guildID, member.User.ID, roleID, mode); err != nil {
			slog.Warn("bulk role change skipped member", "user_id", member.User.ID, "error", err)
			continue
		}
		changed++
	}
	return changed, nil
}
