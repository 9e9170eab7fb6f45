package welcome

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestRoleEventsLogged(t *testing.T) {
	g, _, sink := newGreeter()

	g.HandleRoleCreate(&discordgo.GuildRoleCreate{GuildRole: &discordgo.GuildRole{
		GuildID: "g1",
		Role:    &discordgo.Role{ID: "r1", Name: "Raiders"},
	}})
	g.HandleRoleUpdate(&discordgo.GuildRoleUpdate{GuildRole: &discordgo.GuildRole{
		GuildID: "g1",
		Role:    &discordgo.Role{ID: "r1", Name: "Raid Team"},
	}})
	g.HandleRoleDelete(&discordgo.GuildRoleDelete{RoleID: "r1", GuildID: "g1"})

	if len(sink.embeds) != 3 {
		t.Fatalf("logged %d embeds, want 3", len(sink.embeds))
	}
	wantTitles := []string{"Role Created", "Role Updated", "Role Deleted"}
	for i, want := range wantTitles {
		if sink.embeds[i].Title != want {
			t.Errorf("embed %d title = %q, want %q", i, sink.embeds[i].Title, want)
		}
	}
	if !strings.Contains(sink.embeds[0].Description, "Raiders") {
		t.Errorf("create description = %q, want role name", sink.embeds[0].Description)
	}
}

func TestChannelRenameLogged(t *testing.T) {
	g, _, sink := newGreeter()

	ch := &discordgo.Channel{ID: "c1", Name: "general-2", Type: discordgo.ChannelTypeGuildText}
	g.HandleChannelUpdate(&discordgo.ChannelUpdate{
		Channel:      ch,
		BeforeUpdate: &discordgo.Channel{ID: "c1", Name: "general", Type: discordgo.ChannelTypeGuildText},
	})

	if len(sink.embeds) != 1 {
		t.Fatalf("logged %d embeds, want 1", len(sink.embeds))
	}
	desc := sink.embeds[0].Description
	if !strings.Contains(desc, "general") || !strings.Contains(desc, "general-2") {
		t.Errorf("rename description = %q, want both names", desc)
	}
}

func TestChannelUpdateWithoutRenameIgnored(t *testing.T) {
	g, _, sink := newGreeter()

	ch := &discordgo.Channel{ID: "c1", Name: "general", Topic: "new topic"}
	g.HandleChannelUpdate(&discordgo.ChannelUpdate{
		Channel:      ch,
		BeforeUpdate: &discordgo.Channel{ID: "c1", Name: "general"},
	})
	// Uncached before state also stays quiet.
	g.HandleChannelUpdate(&discordgo.ChannelUpdate{Channel: ch})

	if len(sink.embeds) != 0 {
		t.Fatalf("logged %d embeds, want 0", len(sink.embeds))
	}
}

func TestChannelCreateDeleteLogged(t *testing.T) {
	g, _, sink := newGreeter()

	g.HandleChannelCreate(&discordgo.ChannelCreate{Channel: &discordgo.Channel{
		ID: "c2", Name: "war-room", Type: discordgo.ChannelTypeGuildVoice,
	}})
	g.HandleChannelDelete(&discordgo.ChannelDelete{Channel: &discordgo.Channel{
		ID: "c2", Name: "war-room", Type: discordgo.ChannelTypeGuildVoice,
	}})

	if len(sink.embeds) != 2 {
		t.Fatalf("logged %d embeds, want 2", len(sink.embeds))
	}
	if !strings.Contains(sink.embeds[0].Description, "voice") {
		t.Errorf("create description = %q, want channel kind", sink.embeds[0].Description)
	}
}

func TestEmojiUpdateLogged(t *testing.T) {
	g, _, sink := newGreeter()

	g.HandleEmojisUpdate(&discordgo.GuildEmojisUpdate{
		GuildID: "g1",
		Emojis:  []*discordgo.Emoji{{ID: "e1"}, {ID: "e2"}},
	})

	if len(sink.embeds) != 1 {
		t.Fatalf("logged %d embeds, want 1", len(sink.embeds))
	}
	if !strings.Contains(sink.embeds[0].Description, "2 emoji") {
		t.Errorf("description = %q, want emoji count", sink.embeds[0].Description)
	}
}

func TestVoiceMovementLogged(t *testing.T) {
	update := func(userID, beforeID, afterID string) *discordgo.VoiceStateUpdate {
		v := &discordgo.VoiceStateUpdate{
			VoiceState: &discordgo.VoiceState{GuildID: "g1", UserID: userID, ChannelID: afterID},
		}
		if beforeID != "" {
			v.BeforeUpdate = &discordgo.VoiceState{GuildID: "g1", UserID: userID, ChannelID: beforeID}
		}
		return v
	}

	tests := []struct {
		name      string
		event     *discordgo.VoiceStateUpdate
		wantTitle string
		wantColor int
		wantDesc  []string
	}{
		{"join", update("u1", "", "vc1"), "Voice Join", colorJoin, []string{"<@u1>", "joined <#vc1>"}},
		{"leave", update("u1", "vc1", ""), "Voice Leave", colorLeave, []string{"<@u1>", "left <#vc1>"}},
		{"move", update("u1", "vc1", "vc2"), "Voice Move", colorNeutral, []string{"<@u1>", "<#vc1>", "<#vc2>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, sink := newGreeter()
			g.HandleVoiceState(tt.event)
			if len(sink.embeds) != 1 {
				t.Fatalf("logged %d embeds, want 1", len(sink.embeds))
			}
			e := sink.embeds[0]
			if e.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", e.Title, tt.wantTitle)
			}
			if e.Color != tt.wantColor {
				t.Errorf("color = %#x, want %#x", e.Color, tt.wantColor)
			}
			for _, want := range tt.wantDesc {
				if !strings.Contains(e.Description, want) {
					t.Errorf("description = %q, want %q", e.Description, want)
				}
			}
		})
	}
}

func TestVoiceStateChangeWithinChannelIgnored(t *testing.T) {
	g, _, sink := newGreeter()

	g.HandleVoiceState(&discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "vc1"},
		BeforeUpdate: &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: "vc1"},
	})

	if len(sink.embeds) != 0 {
		t.Fatalf("logged %d embeds, want 0", len(sink.embeds))
	}
}
