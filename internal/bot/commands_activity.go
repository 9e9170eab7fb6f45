package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/reminder"
)

func activityCommandDefs() []*discordgo.ApplicationCommand {
	activityOpt := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "activity", Description: "Activity (autocomplete)",
		Required: true, Autocomplete: true,
	}
	weekdaysOpt := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "weekdays",
		Description: "Weekdays: 1-7 (1=Mon), mon,fri, or ranges like 1-5", Required: true,
	}
	timeOpt := &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "time",
		Description: "24-hour HH:MM, e.g. 23:00", Required: true,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "activity_add",
			Description:              "Add an activity with its first time slot",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Activity name", Required: true},
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for reminders", Required: true,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "ping_role", Description: "Role to ping", Required: true},
				weekdaysOpt,
				timeOpt,
			},
		},
		{
			Name:                     "activity_add_time",
			Description:              "Add a time slot to an existing activity",
			DefaultMemberPermissions: &adminOnly,
			Options:                  []*discordgo.ApplicationCommandOption{activityOpt, weekdaysOpt, timeOpt},
		},
		{
			Name:                     "activity_set",
			Description:              "Change an activity's channel, ping role or name",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				activityOpt,
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "New channel (optional)",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "ping_role", Description: "New ping role (optional)"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "New name (optional)"},
			},
		},
		{
			Name:                     "activity_remove_time",
			Description:              "Remove one time slot from an activity",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				activityOpt,
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "index", Description: "Slot number (starting at 1)", Required: true},
			},
		},
		{
			Name:                     "activity_remove",
			Description:              "Delete an activity and all its slots",
			DefaultMemberPermissions: &adminOnly,
			Options:                  []*discordgo.ApplicationCommandOption{activityOpt},
		},
		{
			Name:                     "activity_list",
			Description:              "List all activities and their time slots",
			DefaultMemberPermissions: &adminOnly,
		},
	}
}

// handleActivityCommand dispatches activity_* commands; reports whether the
// name was one of ours.
func (b *Bot) handleActivityCommand(i *discordgo.InteractionCreate, name string) bool {
	if !strings.HasPrefix(name, "activity_") {
		return false
	}
	if !b.memberIsPrivileged(i.Member) {
		b.replyEphemeral(i, "❌ You don't have permission to use this.")
		return true
	}

	switch name {
	case "activity_add":
		b.handleActivityAdd(i)
	case "activity_add_time":
		b.handleActivityAddTime(i)
	case "activity_set":
		b.handleActivitySet(i)
	case "activity_remove_time":
		b.handleActivityRemoveTime(i)
	case "activity_remove":
		b.handleActivityDelete(i)
	case "activity_list":
		b.handleActivityList(i)
	default:
		return false
	}
	return true
}

func (b *Bot) parseSlot(i *discordgo.InteractionCreate) (reminder.Schedule, bool) {
	opts := options(i)
	weekdays, err := reminder.ParseWeekdays(opts["weekdays"].StringValue())
	if err != nil {
		b.replyEphemeral(i, "❌ "+err.Error())
		return reminder.Schedule{}, false
	}
	hhmm, err := reminder.ParseTime(opts["time"].StringValue())
	if err != nil {
		b.replyEphemeral(i, "❌ "+err.Error())
		return reminder.Schedule{}, false
	}
	return reminder.Schedule{Weekdays: weekdays, Time: hhmm}, true
}

func (b *Bot) handleActivityAdd(i *discordgo.InteractionCreate) {
	slot, ok := b.parseSlot(i)
	if !ok {
		return
	}
	opts := options(i)
	channel := opts["channel"].ChannelValue(b.session)
	role := opts["ping_role"].RoleValue(b.session, i.GuildID)
	if channel == nil || role == nil {
		b.replyEphemeral(i, "❌ Channel or role not found.")
		return
	}

	act, err := b.reminders.Add(opts["name"].StringValue(), channel.ID, role.ID, slot)
	if err != nil {
		slog.Warn("activity add failed", "error", err)
		b.replyEphemeral(i, "⚠️ Could not save the activity.")
		return
	}
	b.replyEphemeral(i, fmt.Sprintf(
		"✅ Added **%s**\nchannel: <#%s>\nping: <@&%s>\nslot: %s\n(reminders go out %d minutes ahead and on time)",
		act.Name, act.ChannelID, act.PingRoleID, reminder.FormatSchedule(slot), b.cfg.Reminders.LeadMinutes()))
}

func (b *Bot) handleActivityAddTime(i *discordgo.InteractionCreate) {
	slot, ok := b.parseSlot(i)
	if !ok {
		return
	}
	id := options(i)["activity"].StringValue()
	act, err := b.reminders.AddSchedule(id, slot)
	if errors.Is(err, reminder.ErrNotFound) {
		b.replyEphemeral(i, "❌ Activity not found.")
		return
	}
	if err != nil {
		b.replyEphemeral(i, "⚠️ Could not save the slot.")
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("✅ Added slot to **%s**: %s", act.Name, reminder.FormatSchedule(slot)))
}

func (b *Bot) handleActivitySet(i *discordgo.InteractionCreate) {
	opts := options(i)
	id := opts["activity"].StringValue()

	var channelID, roleID, name string
	if o, ok := opts["channel"]; ok {
		if ch := o.ChannelValue(b.session); ch != nil {
			channelID = ch.ID
		}
	}
	if o, ok := opts["ping_role"]; ok {
		if r := o.RoleValue(b.session, i.GuildID); r != nil {
			roleID = r.ID
		}
	}
	if o, ok := opts["name"]; ok {
		name = strings.TrimSpace(o.StringValue())
	}
	if channelID == "" && roleID == "" && name == "" {
		b.replyEphemeral(i, "ℹ️ Nothing to change.")
		return
	}

	act, err := b.reminders.Update(id, func(a *reminder.Activity) {
		if channelID != "" {
			a.ChannelID = channelID
		}
		if roleID != "" {
			a.PingRoleID = roleID
		}
		if name != "" {
			a.Name = name
		}
	})
	if errors.Is(err, reminder.ErrNotFound) {
		b.replyEphemeral(i, "❌ Activity not found.")
		return
	}
	if err != nil {
		b.replyEphemeral(i, "⚠️ Could not update the activity.")
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("✅ Updated **%s**\nchannel: <#%s>\nping: <@&%s>", act.Name, act.ChannelID, act.PingRoleID))
}

func (b *Bot) handleActivityRemoveTime(i *discordgo.InteractionCreate) {
	opts := options(i)
	id := opts["activity"].StringValue()
	index := int(opts["index"].IntValue())

	removed, err := b.reminders.RemoveSchedule(id, index)
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		b.replyEphemeral(i, "❌ Activity not found.")
	case errors.Is(err, reminder.ErrBadIndex):
		b.replyEphemeral(i, "❌ Slot number out of range.")
	case err != nil:
		b.replyEphemeral(i, "⚠️ Could not remove the slot.")
	default:
		b.replyEphemeral(i, fmt.Sprintf("✅ Removed slot #%d: %s", index, reminder.FormatSchedule(removed)))
	}
}

func (b *Bot) handleActivityDelete(i *discordgo.InteractionCreate) {
	id := options(i)["activity"].StringValue()
	act, err := b.reminders.Delete(id)
	if errors.Is(err, reminder.ErrNotFound) {
		b.replyEphemeral(i, "❌ Activity not found.")
		return
	}
	if err != nil {
		b.replyEphemeral(i, "⚠️ Could not delete the activity.")
		return
	}
	b.replyEphemeral(i, fmt.Sprintf("✅ Deleted **%s**.", act.Name))
}

func (b *Bot) handleActivityList(i *discordgo.InteractionCreate) {
	acts := b.reminders.List()
	if len(acts) == 0 {
		b.replyEphemeral(i, "ℹ️ No activities yet.")
		return
	}

	var lines []string
	for _, a := range acts {
		lines = append(lines, fmt.Sprintf("**%s**  (ID: `%s`)", a.Name, a.ID))
		lines = append(lines, fmt.Sprintf("- channel: <#%s>", a.ChannelID))
		lines = append(lines, fmt.Sprintf("- ping: <@&%s>", a.PingRoleID))
		for idx, s := range a.Schedules {
			lines = append(lines, fmt.Sprintf("- slot #%d: %s", idx+1, reminder.FormatSchedule(s)))
		}
		lines = append(lines, "")
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if len(text) <= 3800 {
		b.replyEphemeral(i, text)
		return
	}

	// Long lists go out in chunks under the message size cap.
	b.replyEphemeral(i, "📌 Activity list (in parts):")
	var buf strings.Builder
	for _, line := range lines {
		if buf.Len()+len(line)+1 > 3800 {
			b.followup(i, buf.String(), true)
			buf.Reset()
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	if strings.TrimSpace(buf.String()) != "" {
		b.followup(i, buf.String(), true)
	}
}

// handleAutocomplete serves activity name completion for activity_* commands.
func (b *Bot) handleAutocomplete(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var query string
	for _, opt := range data.Options {
		if opt.Name == "activity" && opt.Focused {
			query = strings.ToLower(opt.StringValue())
		}
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, a := range b.reminders.List() {
		if query != "" && !strings.Contains(strings.ToLower(a.Name), query) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: a.Name, Value: a.ID})
		if len(choices) == 25 {
			break
		}
	}

	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		slog.Warn("autocomplete reply failed", "error", err)
	}
}
