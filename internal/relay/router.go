package relay

import (
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

// Router holds the bidirectional mapping between Twitch rooms and Discord
// text channels. Built once from static configuration; lookups are pure map
// reads and an unmapped id simply means no relay happens.
type Router struct {
	toDiscord map[string]string // twitch room (lowercase) → discord channel id
	toTwitch  map[string]string // discord channel id → twitch room
}

// NewRouter builds a router from config pairs, enforcing a strict 1:1 mapping
// in both directions.
func NewRouter(pairs []config.RelayPair) (*Router, error) {
	r := &Router{
		toDiscord: make(map[string]string, len(pairs)),
		toTwitch:  make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		room := strings.ToLower(strings.TrimSpace(p.TwitchChannel))
		if room == "" || p.DiscordChannelID == "" {
			return nil, fmt.Errorf("relay pair needs both twitch_channel and discord_channel_id")
		}
		if _, dup := r.toDiscord[room]; dup {
			return nil, fmt.Errorf("twitch channel %q mapped twice", room)
		}
		if _, dup := r.toTwitch[p.DiscordChannelID]; dup {
			return nil, fmt.Errorf("discord channel %q mapped twice", p.DiscordChannelID)
		}
		r.toDiscord[room] = p.DiscordChannelID
		r.toTwitch[p.DiscordChannelID] = room
	}
	return r, nil
}

// DiscordFor resolves the Discord channel paired with a Twitch room.
func (r *Router) DiscordFor(room string) (string, bool) {
	id, ok := r.toDiscord[strings.ToLower(room)]
	return id, ok
}

// TwitchFor resolves the Twitch room paired with a Discord channel.
func (r *Router) TwitchFor(channelID string) (string, bool) {
	room, ok := r.toTwitch[channelID]
	return room, ok
}

// Rooms lists all mapped Twitch rooms.
func (r *Router) Rooms() []string {
	rooms := make([]string, 0, len(r.toDiscord))
	for room := range r.toDiscord {
		rooms = append(rooms, room)
	}
	return rooms
}
