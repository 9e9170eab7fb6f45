// Package sections duplicates a template category into a new private game
// section: a fresh role, a cloned channel tree, and forum tags carried over.
package sections

import "github.com/bwmarrin/discordgo"

// Kind is the closed set of channel variants the duplicator knows how to
// clone. Anything else in the template is skipped.
type Kind int

const (
	KindText Kind = iota
	KindVoice
	KindStage
	KindForum
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindVoice:
		return "voice"
	case KindStage:
		return "stage"
	default:
		return "forum"
	}
}

// Sendable reports whether members post messages directly in this kind.
func (k Kind) Sendable() bool {
	return k == KindText || k == KindForum
}

// Audible reports whether the kind carries voice.
func (k Kind) Audible() bool {
	return k == KindVoice || k == KindStage
}

// Taggable reports whether the kind supports forum tags.
func (k Kind) Taggable() bool {
	return k == KindForum
}

// KindOf classifies a platform channel type. The second result is false for
// kinds the duplicator does not clone (categories, threads, announcements).
func KindOf(t discordgo.ChannelType) (Kind, bool) {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return KindText, true
	case discordgo.ChannelTypeGuildVoice:
		return KindVoice, true
	case discordgo.ChannelTypeGuildStageVoice:
		return KindStage, true
	case discordgo.ChannelTypeGuildForum:
		return KindForum, true
	default:
		return 0, false
	}
}

func (k Kind) channelType() discordgo.ChannelType {
	switch k {
	case KindText:
		return discordgo.ChannelTypeGuildText
	case KindVoice:
		return discordgo.ChannelTypeGuildVoice
	case KindStage:
		return discordgo.ChannelTypeGuildStageVoice
	default:
		return discordgo.ChannelTypeGuildForum
	}
}
