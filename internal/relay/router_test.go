package relay

import (
	"testing"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

func TestRouterLookup(t *testing.T) {
	r, err := NewRouter([]config.RelayPair{
		{TwitchChannel: "StreamerOne", DiscordChannelID: "111"},
		{TwitchChannel: "streamertwo", DiscordChannelID: "222"},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	if got, ok := r.DiscordFor("streamerone"); !ok || got != "111" {
		t.Errorf("DiscordFor(streamerone) = %q, %v", got, ok)
	}
	if got, ok := r.DiscordFor("STREAMERONE"); !ok || got != "111" {
		t.Errorf("lookup should be case insensitive, got %q, %v", got, ok)
	}
	if got, ok := r.TwitchFor("222"); !ok || got != "streamertwo" {
		t.Errorf("TwitchFor(222) = %q, %v", got, ok)
	}
	if _, ok := r.TwitchFor("999"); ok {
		t.Error("TwitchFor(999) should miss")
	}

	rooms := r.Rooms()
	if len(rooms) != 2 {
		t.Errorf("Rooms() = %v, want 2 entries", rooms)
	}
}

func TestRouterRejectsBadPairs(t *testing.T) {
	tests := []struct {
		name  string
		pairs []config.RelayPair
	}{
		{"duplicate room", []config.RelayPair{
			{TwitchChannel: "a", DiscordChannelID: "1"},
			{TwitchChannel: "A", DiscordChannelID: "2"},
		}},
		{"duplicate channel", []config.RelayPair{
			{TwitchChannel: "a", DiscordChannelID: "1"},
			{TwitchChannel: "b", DiscordChannelID: "1"},
		}},
		{"empty room", []config.RelayPair{{TwitchChannel: "", DiscordChannelID: "1"}}},
		{"empty channel", []config.RelayPair{{TwitchChannel: "a", DiscordChannelID: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRouter(tt.pairs); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
