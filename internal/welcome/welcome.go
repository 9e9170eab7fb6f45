// Package welcome greets new members publicly and mirrors membership
// changes (joins, leaves, nickname and role changes, bans) into the log
// channel.
package welcome

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

const (
	colorJoin    = 0x57F287
	colorLeave   = 0xED4245
	colorNeutral = 0x5865F2
)

// Sender is the slice of *discordgo.Session the greeter needs.
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// LogSink posts an embed to the guild's log channel.
type LogSink interface {
	SendEmbed(embed *discordgo.MessageEmbed)
}

// Greeter handles membership lifecycle events.
type Greeter struct {
	cfg  config.WelcomeConfig
	send Sender
	sink LogSink

	// guildName resolves a guild id to its display name, from gateway state.
	guildName func(guildID string) string
}

// New creates a greeter. Either collaborator may be nil to disable that side;
// guildName may be nil when no state cache is available.
func New(cfg config.WelcomeConfig, send Sender, sink LogSink, guildName func(string) string) *Greeter {
	if guildName == nil {
		guildName = func(string) string { return "the server" }
	}
	return &Greeter{cfg: cfg, send: send, sink: sink, guildName: guildName}
}

// WelcomeMessage renders the public greeting for a new member.
func (g *Greeter) WelcomeMessage(guildName, memberMention string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 Welcome %s to **%s**!\n\n", memberMention, guildName)
	fmt.Fprintf(&b, "📜 Please read %s first\n", channelRef(g.cfg.RulesChannelID, "#rules"))
	fmt.Fprintf(&b, "📝 Group assignment follows your answers; see %s to change them\n", channelRef(g.cfg.GuideChannelID, "#guide"))
	fmt.Fprintf(&b, "💬 Questions? Say **hi** in %s and someone will help you.\n\n", channelRef(g.cfg.SupportChannelID, "#support"))
	b.WriteString("Lastly 🙌 come say hello!\n👉 What should we call you?")
	return b.String()
}

func channelRef(id, fallback string) string {
	if id == "" {
		return fallback
	}
	return "<#" + id + ">"
}

// HandleJoin posts the public welcome and a private join log entry.
func (g *Greeter) HandleJoin(m *discordgo.GuildMemberAdd) {
	if m.User == nil {
		return
	}
	mention := m.User.Mention()

	if g.send != nil && g.cfg.WelcomeChannelID != "" {
		if _, err := g.send.ChannelMessageSend(g.cfg.WelcomeChannelID, g.WelcomeMessage(g.guildName(m.GuildID), mention)); err != nil {
			slog.Warn("welcome message failed", "user_id", m.User.ID, "error", err)
		}
	}
	g.log("Member Join", fmt.Sprintf("👋 %s joined the server.", mention), colorJoin)
}

// HandleLeave logs a member departure.
func (g *Greeter) HandleLeave(m *discordgo.GuildMemberRemove) {
	if m.User == nil {
		return
	}
	g.log("Member Leave", fmt.Sprintf("👋 %s left the server.", m.User.Mention()), colorLeave)
}

// HandleUpdate logs nickname changes and role diffs. BeforeUpdate is only
// available while the member is in the state cache.
func (g *Greeter) HandleUpdate(m *discordgo.GuildMemberUpdate) {
	if m.User == nil || m.BeforeUpdate == nil {
		return
	}
	mention := m.User.Mention()

	if m.BeforeUpdate.Nick != m.Nick {
		g.log("Nickname Change", fmt.Sprintf("🪪 %s nickname changed:\n**Before**: %s\n**After**: %s",
			mention, orNone(m.BeforeUpdate.Nick), orNone(m.Nick)), colorNeutral)
	}

	added, removed := diffRoles(m.BeforeUpdate.Roles, m.Roles)
	if len(added) > 0 {
		g.log("Member Role Add", "➕ "+mention+" gained roles: "+mentionRoles(added), colorJoin)
	}
	if len(removed) > 0 {
		g.log("Member Role Remove", "➖ "+mention+" lost roles: "+mentionRoles(removed), colorLeave)
	}
}

// HandleBan logs a ban.
func (g *Greeter) HandleBan(b *discordgo.GuildBanAdd) {
	if b.User == nil {
		return
	}
	g.log("Member Ban", fmt.Sprintf("🔨 banned: %s", b.User.Mention()), colorLeave)
}

// HandleUnban logs a lifted ban.
func (g *Greeter) HandleUnban(b *discordgo.GuildBanRemove) {
	if b.User == nil {
		return
	}
	g.log("Member Unban", fmt.Sprintf("🕊️ unbanned: %s", b.User.Mention()), colorJoin)
}

func (g *Greeter) log(title, desc string, color int) {
	if g.sink == nil {
		return
	}
	g.sink.SendEmbed(&discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// diffRoles returns role ids present only in after (added) and only in
// before (removed).
func diffRoles(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, id := range before {
		beforeSet[id] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, id := range after {
		afterSet[id] = true
	}
	for _, id := range after {
		if !beforeSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !afterSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func mentionRoles(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, "<@&"+id+">")
	}
	return strings.Join(out, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
