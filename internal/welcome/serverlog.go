package welcome

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Server structure changes (roles, channels, emoji) share the member-log
// sink. Delete events only carry ids unless the object was cached.

// HandleRoleCreate logs a newly created guild role.
func (g *Greeter) HandleRoleCreate(e *discordgo.GuildRoleCreate) {
	if e.Role == nil {
		return
	}
	g.log("Role Created", fmt.Sprintf("🏷️ new role **%s** (`%s`)", e.Role.Name, e.Role.ID), colorJoin)
}

// HandleRoleUpdate logs a role edit.
func (g *Greeter) HandleRoleUpdate(e *discordgo.GuildRoleUpdate) {
	if e.Role == nil {
		return
	}
	g.log("Role Updated", fmt.Sprintf("🏷️ role <@&%s> changed (now **%s**)", e.Role.ID, e.Role.Name), colorNeutral)
}

// HandleRoleDelete logs a deleted role.
func (g *Greeter) HandleRoleDelete(e *discordgo.GuildRoleDelete) {
	g.log("Role Deleted", fmt.Sprintf("🗑️ role `%s` was deleted", e.RoleID), colorLeave)
}

// HandleChannelCreate logs a new channel.
func (g *Greeter) HandleChannelCreate(e *discordgo.ChannelCreate) {
	if e.Channel == nil {
		return
	}
	g.log("Channel Created", fmt.Sprintf("📁 new %s channel <#%s> (**%s**)",
		channelKindWord(e.Type), e.ID, e.Name), colorJoin)
}

// HandleChannelUpdate logs channel renames. Other edits (topic, permissions)
// stay quiet; renames are the change moderators actually look for.
func (g *Greeter) HandleChannelUpdate(e *discordgo.ChannelUpdate) {
	if e.Channel == nil || e.BeforeUpdate == nil {
		return
	}
	if e.BeforeUpdate.Name == e.Name {
		return
	}
	g.log("Channel Renamed", fmt.Sprintf("📁 <#%s> renamed:\n**Before**: %s\n**After**: %s",
		e.ID, e.BeforeUpdate.Name, e.Name), colorNeutral)
}

// HandleChannelDelete logs a deleted channel.
func (g *Greeter) HandleChannelDelete(e *discordgo.ChannelDelete) {
	if e.Channel == nil {
		return
	}
	g.log("Channel Deleted", fmt.Sprintf("🗑️ %s channel **%s** (`%s`) was deleted",
		channelKindWord(e.Type), e.Name, e.ID), colorLeave)
}

// HandleVoiceState logs members joining, leaving, and moving between voice
// channels. Updates that keep the member in the same channel (mute, deafen)
// stay quiet. BeforeUpdate is nil when the previous state was not cached;
// those show up as joins.
func (g *Greeter) HandleVoiceState(v *discordgo.VoiceStateUpdate) {
	before := ""
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	after := v.ChannelID
	if before == after {
		return
	}
	mention := "<@" + v.UserID + ">"
	switch {
	case before == "":
		g.log("Voice Join", fmt.Sprintf("🎤 %s joined <#%s>", mention, after), colorJoin)
	case after == "":
		g.log("Voice Leave", fmt.Sprintf("🔇 %s left <#%s>", mention, before), colorLeave)
	default:
		g.log("Voice Move", fmt.Sprintf("🔀 %s <#%s> → <#%s>", mention, before, after), colorNeutral)
	}
}

// HandleEmojisUpdate logs the guild emoji set changing.
func (g *Greeter) HandleEmojisUpdate(e *discordgo.GuildEmojisUpdate) {
	g.log("Emoji Update", fmt.Sprintf("😀 the server emoji set changed, now %d emoji", len(e.Emojis)), colorNeutral)
}

func channelKindWord(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGuildStageVoice:
		return "stage"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	default:
		return "text"
	}
}
