package bot

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/roles"
)

// memberIsAdmin reports whether the member carries the Administrator
// permission in this guild.
func (b *Bot) memberIsAdmin(m *discordgo.Member) bool {
	return m != nil && m.Permissions&discordgo.PermissionAdministrator != 0
}

// memberIsPrivileged allows admins plus anyone holding the configured
// helper role. Helpers may manage reminders, roles and other members'
// temp channels.
func (b *Bot) memberIsPrivileged(m *discordgo.Member) bool {
	if b.memberIsAdmin(m) {
		return true
	}
	helper := b.cfg.Discord.HelperRoleID
	return m != nil && helper != "" && slices.Contains(m.Roles, helper)
}

// memberCanShuffle gates /tu: admins, channel managers and verified members.
func (b *Bot) memberCanShuffle(m *discordgo.Member) bool {
	if m == nil {
		return false
	}
	if m.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageChannels) != 0 {
		return true
	}
	verified := b.cfg.Discord.VerifiedRoleID
	return verified != "" && slices.Contains(m.Roles, verified)
}

// memberTopPosition returns the highest role position the member holds,
// resolved against the state cache. Members with only @everyone sit at 0.
func (b *Bot) memberTopPosition(m *discordgo.Member) int {
	top := 0
	if m == nil {
		return top
	}
	for _, roleID := range m.Roles {
		role, err := b.session.State.Role(b.cfg.Discord.GuildID, roleID)
		if err != nil {
			continue
		}
		if role.Position > top {
			top = role.Position
		}
	}
	return top
}

// hierarchy snapshots what the bot itself may do in the guild, from the
// state cache.
func (b *Bot) hierarchy() roles.Hierarchy {
	guildID := b.cfg.Discord.GuildID
	h := roles.Hierarchy{GuildID: guildID}

	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return h
	}
	h.OwnerID = guild.OwnerID

	me, err := b.session.State.Member(guildID, b.botUserID)
	if err != nil {
		return h
	}
	h.BotTopPosition = b.memberTopPosition(me)
	for _, roleID := range me.Roles {
		role, err := b.session.State.Role(guildID, roleID)
		if err != nil {
			continue
		}
		if role.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageRoles) != 0 {
			h.ManageRoles = true
		}
	}
	return h
}
