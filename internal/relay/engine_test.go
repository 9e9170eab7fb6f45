package relay

import (
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

type fakeDiscord struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, channelID+"|"+content)
	return &discordgo.Message{ID: "sent", ChannelID: channelID, Content: content}, nil
}

func (f *fakeDiscord) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeIRC struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeIRC) Join(...string)                         {}
func (f *fakeIRC) Connect() error                         { return nil }
func (f *fakeIRC) Disconnect() error                      { return nil }
func (f *fakeIRC) OnConnect(func())                       {}
func (f *fakeIRC) OnPrivateMessage(func(twitch.PrivateMessage)) {}

func (f *fakeIRC) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, channel+"|"+text)
}

func (f *fakeIRC) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

func newTestEngine(t *testing.T) (*Engine, *fakeDiscord, *fakeIRC) {
	t.Helper()
	cfg := config.RelayConfig{
		BotUsername: "barkeepbot",
		Pairs: []config.RelayPair{
			{TwitchChannel: "streamer", DiscordChannelID: "chan1"},
		},
	}
	router, err := NewRouter(cfg.Pairs)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	discord := &fakeDiscord{}
	e := New(cfg, router, discord)

	irc := &fakeIRC{}
	e.rooms["streamer"] = &roomConn{
		state:  StateConnected,
		client: irc,
		nudge:  make(chan struct{}, 1),
	}
	return e, discord, irc
}

func twitchMsg(id, user, text string) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		ID:      id,
		User:    twitch.User{Name: strings.ToLower(user), DisplayName: user},
		Message: text,
	}
}

func TestTwitchToDiscordForward(t *testing.T) {
	e, discord, _ := newTestEngine(t)

	e.handleTwitchMessage("streamer", twitchMsg("m1", "Bob", "hello there"))

	got := discord.messages()
	if len(got) != 1 {
		t.Fatalf("sent %d messages, want 1: %v", len(got), got)
	}
	if got[0] != "chan1|[Twitch] Bob: hello there" {
		t.Errorf("unexpected message: %q", got[0])
	}
}

func TestTwitchRedeliveryDropped(t *testing.T) {
	e, discord, _ := newTestEngine(t)

	e.handleTwitchMessage("streamer", twitchMsg("m1", "Bob", "hello"))
	e.handleTwitchMessage("streamer", twitchMsg("m1", "Bob", "hello"))
	if got := discord.messages(); len(got) != 1 {
		t.Fatalf("id redelivery not dropped: %v", got)
	}

	// Same content under a fresh id inside the window is still a duplicate.
	e.handleTwitchMessage("streamer", twitchMsg("m2", "Bob", "hello"))
	if got := discord.messages(); len(got) != 1 {
		t.Fatalf("content redelivery not dropped: %v", got)
	}

	// Different content goes through.
	e.handleTwitchMessage("streamer", twitchMsg("m3", "Bob", "something else"))
	if got := discord.messages(); len(got) != 2 {
		t.Fatalf("distinct message dropped: %v", got)
	}
}

func TestTwitchEchoesDropped(t *testing.T) {
	e, discord, _ := newTestEngine(t)

	// The bot's own IRC lines never re-enter the relay.
	e.handleTwitchMessage("streamer", twitchMsg("m1", "BarkeepBot", "[Discord] Alice: hi"))
	// A Discord-origin tag from any user is treated as an echo too.
	e.handleTwitchMessage("streamer", twitchMsg("m2", "Bob", "[Discord] Alice: hi"))

	if got := discord.messages(); len(got) != 0 {
		t.Fatalf("echoes forwarded: %v", got)
	}
}

func TestTwitchUnmappedRoomIgnored(t *testing.T) {
	e, discord, _ := newTestEngine(t)
	e.handleTwitchMessage("otherroom", twitchMsg("m1", "Bob", "hello"))
	if got := discord.messages(); len(got) != 0 {
		t.Fatalf("unmapped room forwarded: %v", got)
	}
}

func TestDiscordToTwitchForward(t *testing.T) {
	e, _, irc := newTestEngine(t)

	e.HandleDiscordMessage(DiscordMessage{
		ChannelID:  "chan1",
		AuthorName: "Alice",
		Content:    "good  evening",
	})

	got := irc.messages()
	if len(got) != 1 {
		t.Fatalf("said %d messages, want 1: %v", len(got), got)
	}
	if got[0] != "streamer|[Discord] Alice: good evening" {
		t.Errorf("unexpected message: %q", got[0])
	}
}

func TestDiscordFilteredMessagesDropped(t *testing.T) {
	e, _, irc := newTestEngine(t)

	tests := []struct {
		name string
		msg  DiscordMessage
	}{
		{"bot author", DiscordMessage{ChannelID: "chan1", AuthorBot: true, AuthorName: "OtherBot", Content: "hi"}},
		{"empty content", DiscordMessage{ChannelID: "chan1", AuthorName: "Alice", Content: ""}},
		{"twitch-origin echo", DiscordMessage{ChannelID: "chan1", AuthorName: "Alice", Content: "[Twitch] Bob: hi"}},
		{"unmapped channel", DiscordMessage{ChannelID: "chan9", AuthorName: "Alice", Content: "hi"}},
		{"invisible only", DiscordMessage{ChannelID: "chan1", AuthorName: "Alice", Content: "​‌"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.HandleDiscordMessage(tt.msg)
			if got := irc.messages(); len(got) != 0 {
				t.Fatalf("message forwarded: %v", got)
			}
		})
	}
}

func TestDiscordMessageDroppedWhenDisconnected(t *testing.T) {
	e, _, irc := newTestEngine(t)
	rc := e.rooms["streamer"]
	rc.setState(StateDisconnected)

	e.HandleDiscordMessage(DiscordMessage{ChannelID: "chan1", AuthorName: "Alice", Content: "hi"})

	if got := irc.messages(); len(got) != 0 {
		t.Fatalf("message sent on dead connection: %v", got)
	}
	select {
	case <-rc.nudge:
	default:
		t.Error("no reconnect nudge recorded")
	}

	// The dropped message is gone for good: reconnecting does not replay it.
	rc.setState(StateConnected)
	if got := irc.messages(); len(got) != 0 {
		t.Fatalf("dropped message was replayed: %v", got)
	}
}

func TestRelayLoopTerminates(t *testing.T) {
	e, discord, irc := newTestEngine(t)

	// Twitch → Discord, then the posted message observed back on Discord.
	e.handleTwitchMessage("streamer", twitchMsg("m1", "Bob", "round and round"))
	forwarded := discord.messages()
	if len(forwarded) != 1 {
		t.Fatalf("forward failed: %v", forwarded)
	}
	content := strings.SplitN(forwarded[0], "|", 2)[1]
	e.HandleDiscordMessage(DiscordMessage{ChannelID: "chan1", AuthorBot: true, AuthorName: "Barkeep", Content: content})
	// Even without the bot flag the provenance tag stops the bounce.
	e.HandleDiscordMessage(DiscordMessage{ChannelID: "chan1", AuthorName: "Barkeep", Content: content})
	if got := irc.messages(); len(got) != 0 {
		t.Fatalf("twitch-origin message bounced back to twitch: %v", got)
	}

	// Discord → Twitch, then the relayed line observed back from IRC.
	e.HandleDiscordMessage(DiscordMessage{ChannelID: "chan1", AuthorName: "Alice", Content: "other way"})
	said := irc.messages()
	if len(said) != 1 {
		t.Fatalf("forward failed: %v", said)
	}
	line := strings.SplitN(said[0], "|", 2)[1]
	e.handleTwitchMessage("streamer", twitchMsg("m2", "BarkeepBot", line))
	e.handleTwitchMessage("streamer", twitchMsg("m3", "Bob", line))
	if got := discord.messages(); len(got) != 1 {
		t.Fatalf("discord-origin message bounced back to discord: %v", got)
	}
}

func TestConnStateString(t *testing.T) {
	states := map[ConnState]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
	}
	for s, want := range states {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
