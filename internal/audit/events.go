package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	colorDelete = 0xED4245
	colorEdit   = 0xFEE75C

	contentLimit = 500
	editLimit    = 900
)

// LogSink posts an embed to the guild's log channel. Implemented by the bot
// layer; a nil sink disables mirroring.
type LogSink interface {
	SendEmbed(embed *discordgo.MessageEmbed)
}

// Auditor turns gateway message events into audit records and log embeds.
// Either the store or the sink may be nil; the other side keeps working.
type Auditor struct {
	store *Store
	sink  LogSink
}

// New creates an auditor writing to store and mirroring to sink.
func New(store *Store, sink LogSink) *Auditor {
	return &Auditor{store: store, sink: sink}
}

// HandleDelete records a single message deletion. Content is only available
// when the message was still in the gateway cache.
func (a *Auditor) HandleDelete(m *discordgo.MessageDelete) {
	if m.GuildID == "" {
		return
	}

	authorID := ""
	authorMention := "(unknown member)"
	content := "(no text, possibly attachments or embeds only)"
	var attachments []string

	if before := m.BeforeDelete; before != nil {
		if before.Author != nil {
			authorID = before.Author.ID
			authorMention = before.Author.Mention()
		}
		if before.Content != "" {
			content = truncate(before.Content, contentLimit)
		}
		for _, att := range before.Attachments {
			attachments = append(attachments, att.Filename)
		}
	}

	a.record(Record{
		Kind:        KindDelete,
		GuildID:     m.GuildID,
		ChannelID:   m.ChannelID,
		MessageID:   m.ID,
		AuthorID:    authorID,
		Content:     content,
		Attachments: strings.Join(attachments, ", "),
	})

	desc := fmt.Sprintf("🧹 message by %s deleted in <#%s>\ncontent: %s", authorMention, m.ChannelID, content)
	if len(attachments) > 0 {
		desc += "\nattachments: " + strings.Join(attachments, ", ")
	}
	embed := newEmbed("Message Delete", desc, colorDelete)
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Author ID: %s • Message ID: %s", orUnknown(authorID), m.ID),
	}
	a.send(embed)
}

// HandleBulkDelete records a bulk deletion as a single event.
func (a *Auditor) HandleBulkDelete(m *discordgo.MessageDeleteBulk) {
	if m.GuildID == "" || len(m.Messages) == 0 {
		return
	}

	a.record(Record{
		Kind:      KindBulkDelete,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Count:     len(m.Messages),
	})

	a.send(newEmbed("Bulk Message Delete",
		fmt.Sprintf("**%d** messages deleted at once in <#%s>.", len(m.Messages), m.ChannelID),
		colorDelete))
}

// HandleUpdate records an edit when the content actually changed.
func (a *Auditor) HandleUpdate(m *discordgo.MessageUpdate) {
	if m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return
	}

	before := "(uncached)"
	if m.BeforeUpdate != nil {
		if m.BeforeUpdate.Content == m.Content {
			return
		}
		before = m.BeforeUpdate.Content
		if before == "" {
			before = "(empty)"
		}
	}
	after := m.Content
	if after == "" {
		after = "(empty)"
	}

	a.record(Record{
		Kind:       KindEdit,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		AuthorID:   m.Author.ID,
		Content:    truncate(after, editLimit),
		ContentWas: truncate(before, editLimit),
	})

	desc := fmt.Sprintf("✏️ %s edited a message in <#%s>:\n**Before**: %s\n**After**: %s",
		m.Author.Mention(), m.ChannelID, truncate(before, editLimit), truncate(after, editLimit))
	a.send(newEmbed("Message Edit", desc, colorEdit))
}

func (a *Auditor) record(r Record) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Insert(ctx, r); err != nil {
		slog.Warn("audit record not persisted", "kind", r.Kind, "error", err)
	}
}

func (a *Auditor) send(embed *discordgo.MessageEmbed) {
	if a.sink == nil {
		return
	}
	a.sink.SendEmbed(embed)
}

func newEmbed(title, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// truncate shortens s to at most limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
