package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/roles"
	"github.com/nextlevelbuilder/barkeep/internal/sections"
	"github.com/nextlevelbuilder/barkeep/internal/teams"
	"github.com/nextlevelbuilder/barkeep/internal/tempvc"
)

var adminOnly int64 = discordgo.PermissionAdministrator

// commandDefs is the full slash command surface, registered per guild.
func commandDefs() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Bot response time",
		},
		{
			Name:        "tu",
			Description: "Shuffle the mentioned members into two teams",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "members", Description: "Mention everyone who plays", Required: true},
			},
		},
		{
			Name:        "vc_new",
			Description: "Create a temporary voice channel in this category",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Room name", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "Member limit (0 = unlimited)"},
			},
		},
		{
			Name:        "vc_teardown",
			Description: "Delete a temporary voice channel immediately",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "The temp channel (defaults to the one you are in)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice}},
			},
		},
		{
			Name:                     "role_channel_new",
			Description:              "Clone a role-gated channel for a new version, retiring the old role to read-only",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "source_channel", Description: "The current version's channel", Required: true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
						discordgo.ChannelTypeGuildVoice,
						discordgo.ChannelTypeGuildStageVoice,
						discordgo.ChannelTypeGuildForum,
					}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "new_role_name", Description: "Role gating the new version", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "new_channel_name", Description: "New channel name (defaults to the source name plus _temp)"},
			},
		},
		{
			Name:                     "duplicate",
			Description:              "Clone the template category into a new private game section",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "gamename", Description: "New game name, e.g. Delta Force", Required: true},
			},
		},
		{
			Name:                     "role_grant",
			Description:              "Grant a role to one member or to everyone holding a target role",
			DefaultMemberPermissions: &adminOnly,
			Options:                  roleChangeOptions("grant"),
		},
		{
			Name:                     "role_revoke",
			Description:              "Revoke a role from one member or from everyone holding a target role",
			DefaultMemberPermissions: &adminOnly,
			Options:                  roleChangeOptions("revoke"),
		},
		{
			Name:                     "roles_list",
			Description:              "List a member's roles, highest first",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to inspect", Required: true},
			},
		},
	}
}

func roleChangeOptions(verb string) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to " + verb, Required: true},
		{Type: discordgo.ApplicationCommandOptionUser, Name: "target_member", Description: "(pick one) target member"},
		{Type: discordgo.ApplicationCommandOptionRole, Name: "target_role", Description: "(pick one) apply to all members holding this role"},
		{Type: discordgo.ApplicationCommandOptionBoolean, Name: "include_bots", Description: "Include bot accounts (default no)"},
	}
}

func (b *Bot) registerCommands() error {
	defs := append(commandDefs(), activityCommandDefs()...)
	_, err := b.session.ApplicationCommandBulkOverwrite(b.botUserID, b.cfg.Discord.GuildID, defs)
	if err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}
	slog.Info("slash commands registered", "count", len(defs))
	return nil
}

func (b *Bot) onInteraction(i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(i)
		return
	case discordgo.InteractionApplicationCommand:
	default:
		return
	}
	if i.GuildID != b.cfg.Discord.GuildID {
		b.replyEphemeral(i, "This command only works in its home server.")
		return
	}

	name := i.ApplicationCommandData().Name
	start := time.Now()
	switch name {
	case "ping":
		b.handlePing(i)
	case "tu":
		b.handleTeams(i)
	case "vc_new":
		b.handleVCNew(i)
	case "vc_teardown":
		b.handleVCRemove(i)
	case "duplicate":
		b.handleDuplicate(i)
	case "role_channel_new":
		b.handleRoleChannelNew(i)
	case "role_grant":
		b.handleRoleChange(i, roles.ModeGrant)
	case "role_revoke":
		b.handleRoleChange(i, roles.ModeRevoke)
	case "roles_list":
		b.handleRolesList(i)
	default:
		if !b.handleActivityCommand(i, name) {
			slog.Warn("unknown command", "name", name)
			return
		}
	}
	slog.Debug("command handled", "name", name, "took", time.Since(start))
}

// ---- reply helpers ----

func (b *Bot) reply(i *discordgo.InteractionCreate, content string) {
	b.respond(i, content, 0)
}

func (b *Bot) replyEphemeral(i *discordgo.InteractionCreate, content string) {
	b.respond(i, content, discordgo.MessageFlagsEphemeral)
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string, flags discordgo.MessageFlags) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	})
	if err != nil {
		slog.Warn("interaction reply failed", "error", err)
	}
}

func (b *Bot) replyEmbedEphemeral(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("interaction reply failed", "error", err)
	}
}

func (b *Bot) deferReply(i *discordgo.InteractionCreate, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
}

func (b *Bot) followup(i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if _, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   flags,
	}); err != nil {
		slog.Warn("interaction followup failed", "error", err)
	}
}

func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

// ---- simple commands ----

func (b *Bot) handlePing(i *discordgo.InteractionCreate) {
	b.replyEphemeral(i, fmt.Sprintf("Pong! 🏓 %dms", b.session.HeartbeatLatency().Milliseconds()))
}

func (b *Bot) handleTeams(i *discordgo.InteractionCreate) {
	if !b.memberCanShuffle(i.Member) {
		b.replyEphemeral(i, "You don't have permission to use this.")
		return
	}
	opts := options(i)

	// The invoker always plays.
	text := i.Member.User.Mention() + " " + opts["members"].StringValue()
	players := teams.ExtractMentions(text)
	teamA, teamB, err := teams.Split(players, nil)
	if errors.Is(err, teams.ErrTooFewPlayers) {
		b.replyEphemeral(i, "⚠️ Mention at least two participants!")
		return
	}
	b.reply(i, teams.Format(teamA, teamB))
}

// ---- temp voice channels ----

func (b *Bot) handleVCNew(i *discordgo.InteractionCreate) {
	opts := options(i)
	name := strings.TrimSpace(opts["name"].StringValue())
	limit := 0
	if o, ok := opts["limit"]; ok {
		limit = int(o.IntValue())
	}
	if name == "" {
		b.replyEphemeral(i, "❌ Give the room a name.")
		return
	}

	parentID := ""
	if ch, err := b.session.State.Channel(i.ChannelID); err == nil {
		parentID = ch.ParentID
	}

	created, err := b.tempVC.Create(i.GuildID, parentID, name, limit)
	if err != nil {
		slog.Warn("temp vc create failed", "error", err)
		b.replyEphemeral(i, "⚠️ Could not create the channel.")
		return
	}

	// Pull the invoker in if they are already in voice.
	if vs, err := b.session.State.VoiceState(i.GuildID, i.Member.User.ID); err == nil && vs != nil && vs.ChannelID != "" {
		if err := b.tempVC.Move(i.GuildID, i.Member.User.ID, created.ID); err != nil {
			slog.Warn("temp vc move failed", "error", err)
		}
	}

	b.replyEphemeral(i, fmt.Sprintf("✅ Created <#%s>. It deletes itself after sitting empty for a while.", created.ID))
}

func (b *Bot) handleVCRemove(i *discordgo.InteractionCreate) {
	channelID := ""
	if o, ok := options(i)["channel"]; ok {
		if ch := o.ChannelValue(nil); ch != nil {
			channelID = ch.ID
		}
	}
	if channelID == "" {
		// No channel named: tear down the room the invoker is sitting in.
		channelID = b.invokerVoiceChannelID(i.GuildID, i.Member.User.ID)
	}
	if channelID == "" {
		b.replyEphemeral(i, "❌ Join the channel first, or name it explicitly.")
		return
	}

	err := b.tempVC.Teardown(channelID, b.memberIsPrivileged(i.Member))
	switch {
	case errors.Is(err, tempvc.ErrNotAuthorized):
		b.replyEphemeral(i, "❌ You don't have permission to remove temp channels.")
	case errors.Is(err, tempvc.ErrNotTracked):
		b.replyEphemeral(i, "❌ That channel isn't one of mine.")
	case err != nil:
		slog.Warn("temp vc teardown failed", "error", err)
		b.replyEphemeral(i, "⚠️ Could not delete the channel.")
	default:
		b.replyEphemeral(i, "✅ Channel removed.")
	}
}

// ---- section duplication ----

func (b *Bot) handleDuplicate(i *discordgo.InteractionCreate) {
	if !b.memberIsAdmin(i.Member) {
		b.replyEphemeral(i, "Administrator permission required.")
		return
	}
	game := strings.TrimSpace(options(i)["gamename"].StringValue())
	if game == "" {
		b.replyEphemeral(i, "❌ Give the game a name.")
		return
	}

	if err := b.deferReply(i, true); err != nil {
		slog.Warn("defer failed", "error", err)
		return
	}

	res, err := b.duplicator.Duplicate(i.GuildID, game)
	if err != nil {
		slog.Warn("section duplication failed", "game", game, "error", err)
		b.followup(i, fmt.Sprintf("❌ Failed: %v", err), true)
		return
	}

	roleNote := "new role"
	if res.RoleReused {
		roleNote = "existing role"
	}
	b.followup(i, fmt.Sprintf("✅ New section **%s** with %d channels; %s **%s**.",
		res.CategoryName, res.Channels, roleNote, res.RoleName), true)
}

func (b *Bot) handleRoleChannelNew(i *discordgo.InteractionCreate) {
	if !b.memberIsAdmin(i.Member) {
		b.replyEphemeral(i, "Administrator permission required.")
		return
	}
	opts := options(i)
	source := opts["source_channel"].ChannelValue(nil)
	roleName := strings.TrimSpace(opts["new_role_name"].StringValue())
	channelName := ""
	if o, ok := opts["new_channel_name"]; ok {
		channelName = strings.TrimSpace(o.StringValue())
	}
	if source == nil || roleName == "" {
		b.replyEphemeral(i, "❌ Pick a source channel and a role name.")
		return
	}

	if err := b.deferReply(i, true); err != nil {
		slog.Warn("defer failed", "error", err)
		return
	}

	res, err := b.versioner.NewVersion(i.GuildID, source.ID, roleName, channelName)
	switch {
	case errors.Is(err, sections.ErrNoVersionRole):
		b.followup(i, "❌ The source channel has no version role to model the new one on.", true)
	case errors.Is(err, sections.ErrAmbiguousVersionRole):
		b.followup(i, "❌ The source channel is gated by more than one role; clean it up first.", true)
	case errors.Is(err, sections.ErrRoleExists):
		b.followup(i, fmt.Sprintf("❌ A role named **%s** already exists.", roleName), true)
	case err != nil:
		slog.Warn("channel versioning failed", "source", source.ID, "error", err)
		b.followup(i, fmt.Sprintf("❌ Failed: %v", err), true)
	default:
		b.followup(i, fmt.Sprintf("✅ New version channel <#%s>.\n➕ New role **%s**.\n🔒 %d legacy role(s) set to read-only.",
			res.ChannelID, res.RoleName, res.Demoted), true)
	}
}

// ---- role management ----

func (b *Bot) handleRoleChange(i *discordgo.InteractionCreate, mode roles.Mode) {
	if !b.memberIsPrivileged(i.Member) {
		b.replyEphemeral(i, "❌ You don't have permission to use this.")
		return
	}
	opts := options(i)
	role := opts["role"].RoleValue(b.session, i.GuildID)
	if role == nil {
		b.replyEphemeral(i, "❌ Role not found.")
		return
	}

	var targetMember *discordgo.User
	if o, ok := opts["target_member"]; ok {
		targetMember = o.UserValue(b.session)
	}
	var targetRole *discordgo.Role
	if o, ok := opts["target_role"]; ok {
		targetRole = o.RoleValue(b.session, i.GuildID)
	}
	includeBots := false
	if o, ok := opts["include_bots"]; ok {
		includeBots = o.BoolValue()
	}

	if (targetMember == nil) == (targetRole == nil) {
		b.replyEphemeral(i, "❌ Fill exactly one of target_member or target_role.")
		return
	}

	h := b.hierarchy()
	if !h.CanManageRole(role) {
		b.replyEphemeral(i, "❌ I lack permission or role position to manage that role.")
		return
	}

	if targetMember != nil {
		b.applySingleRoleChange(i, h, role, targetMember, mode)
		return
	}
	b.applyBulkRoleChange(i, role, targetRole, includeBots, mode)
}

func (b *Bot) applySingleRoleChange(i *discordgo.InteractionCreate, h roles.Hierarchy, role *discordgo.Role, user *discordgo.User, mode roles.Mode) {
	member, err := b.session.State.Member(i.GuildID, user.ID)
	if err != nil {
		member, err = b.session.GuildMember(i.GuildID, user.ID)
	}
	if err != nil || member == nil {
		b.replyEphemeral(i, "❌ Member not found.")
		return
	}

	if !h.CanEditMember(user.ID, b.memberTopPosition(member)) {
		b.replyEphemeral(i, "❌ I can't modify that member.")
		return
	}

	has := roles.HasRole(member, role.ID)
	if mode == roles.ModeGrant && has {
		b.replyEphemeral(i, "ℹ️ The member already has that role.")
		return
	}
	if mode == roles.ModeRevoke && !has {
		b.replyEphemeral(i, "ℹ️ The member doesn't have that role.")
		return
	}

	if err := b.roles.Apply(i.GuildID, user.ID, role.ID, mode); err != nil {
		slog.Warn("role change failed", "error", err)
		b.replyEphemeral(i, fmt.Sprintf("⚠️ Failed: %v", err))
		return
	}
	b.replyEphemeral(i, "✅ Done.")
}

func (b *Bot) applyBulkRoleChange(i *discordgo.InteractionCreate, role, targetRole *discordgo.Role, includeBots bool, mode roles.Mode) {
	if err := b.deferReply(i, true); err != nil {
		slog.Warn("defer failed", "error", err)
		return
	}

	guild, err := b.session.State.Guild(i.GuildID)
	if err != nil {
		b.followup(i, "⚠️ Guild state unavailable.", true)
		return
	}
	targets := roles.FilterTargets(guild.Members, targetRole.ID, includeBots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	n, err := b.roles.BulkApply(ctx, i.GuildID, targets, role.ID, mode)
	if err != nil {
		b.followup(i, fmt.Sprintf("⚠️ Stopped after %d members: %v", n, err), true)
		return
	}
	b.followup(i, fmt.Sprintf("✅ Bulk change complete, %d members processed.", n), true)
}

func (b *Bot) handleRolesList(i *discordgo.InteractionCreate) {
	if !b.memberIsPrivileged(i.Member) {
		b.replyEphemeral(i, "❌ You don't have permission to use this.")
		return
	}
	user := options(i)["member"].UserValue(b.session)
	member, err := b.session.State.Member(i.GuildID, user.ID)
	if err != nil {
		member, err = b.session.GuildMember(i.GuildID, user.ID)
	}
	if err != nil || member == nil {
		b.replyEphemeral(i, "❌ Member not found.")
		return
	}

	var rs []*discordgo.Role
	for _, id := range member.Roles {
		if r, err := b.session.State.Role(i.GuildID, id); err == nil {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		b.replyEphemeral(i, fmt.Sprintf("ℹ️ %s has no custom roles.", user.Mention()))
		return
	}
	roles.SortByPosition(rs)

	lines := make([]string, 0, len(rs))
	for _, r := range rs {
		lines = append(lines, fmt.Sprintf("<@&%s>  (ID: `%s`)", r.ID, r.ID))
	}
	b.replyEmbedEphemeral(i, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s's roles (high → low)", user.Username),
		Description: strings.Join(lines, "\n"),
		Color:       0x5865F2,
	})
}
