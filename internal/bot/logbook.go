package bot

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// EmbedSender is the slice of *discordgo.Session the logbook needs.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Logbook posts moderation embeds to the configured log channel. With no
// channel configured it drops everything silently.
type Logbook struct {
	send      EmbedSender
	channelID string
}

func NewLogbook(send EmbedSender, channelID string) *Logbook {
	return &Logbook{send: send, channelID: channelID}
}

// SendEmbed posts one embed. Failures are logged and swallowed.
func (l *Logbook) SendEmbed(embed *discordgo.MessageEmbed) {
	if l.channelID == "" {
		return
	}
	if _, err := l.send.ChannelMessageSendEmbed(l.channelID, embed); err != nil {
		slog.Warn("log channel send failed", "title", embed.Title, "error", err)
	}
}
