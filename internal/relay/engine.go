package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	twitch "github.com/gempir/go-twitch-irc/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

// ConnState tracks one room's IRC connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// maxConnectAttempts bounds the reconnect loop before a room gives up and
// waits for an explicit nudge (a Discord message bound for it).
const maxConnectAttempts = 5

// DiscordSender is the slice of *discordgo.Session the engine needs.
type DiscordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ircClient abstracts go-twitch-irc's client so tests can drive the engine
// without a network.
type ircClient interface {
	Join(channels ...string)
	Say(channel, text string)
	Connect() error
	Disconnect() error
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
}

// DiscordMessage is the slice of a gateway message event the relay consumes.
type DiscordMessage struct {
	ChannelID  string
	AuthorBot  bool
	AuthorName string
	Content    string
}

type roomConn struct {
	mu       sync.Mutex
	state    ConnState
	client   ircClient
	attempts int
	nudge    chan struct{}
}

func (rc *roomConn) setState(s ConnState) {
	rc.mu.Lock()
	rc.state = s
	rc.mu.Unlock()
}

// State returns the room's current connection state.
func (rc *roomConn) State() ConnState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Engine owns the relay state: the guard, the per-room connections and the
// Discord send path. All mutation is mutex-guarded; Stop cancels every room
// goroutine and disconnects the IRC sessions.
type Engine struct {
	cfg     config.RelayConfig
	router  *Router
	guard   *Guard
	discord DiscordSender
	ttl     time.Duration

	// newClient is a seam for tests; production builds a go-twitch-irc client.
	newClient func() ircClient

	mu     sync.Mutex
	rooms  map[string]*roomConn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a relay engine. The engine does nothing until Start.
func New(cfg config.RelayConfig, router *Router, discord DiscordSender) *Engine {
	e := &Engine{
		cfg:     cfg,
		router:  router,
		guard:   NewGuard(),
		discord: discord,
		ttl:     cfg.DedupWindow(),
		rooms:   make(map[string]*roomConn),
	}
	e.newClient = func() ircClient {
		return twitch.NewClient(cfg.BotUsername, cfg.OAuthToken)
	}
	return e
}

// Start spawns one connection loop per mapped room.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for _, room := range e.router.Rooms() {
		rc := &roomConn{nudge: make(chan struct{}, 1)}
		e.mu.Lock()
		e.rooms[room] = rc
		e.mu.Unlock()

		e.wg.Add(1)
		go func(room string, rc *roomConn) {
			defer e.wg.Done()
			e.runRoom(runCtx, room, rc)
		}(room, rc)
	}

	slog.Info("relay started", "rooms", len(e.router.Rooms()))
	return nil
}

// Stop tears the relay down: all room goroutines are cancelled and every IRC
// session disconnected.
func (e *Engine) Stop(_ context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Lock()
	for _, rc := range e.rooms {
		rc.mu.Lock()
		if rc.client != nil {
			_ = rc.client.Disconnect()
		}
		rc.mu.Unlock()
	}
	e.mu.Unlock()
	e.wg.Wait()
	slog.Info("relay stopped")
	return nil
}

// RoomState reports the connection state for a room, for health reporting.
func (e *Engine) RoomState(room string) ConnState {
	e.mu.Lock()
	rc := e.rooms[strings.ToLower(room)]
	e.mu.Unlock()
	if rc == nil {
		return StateDisconnected
	}
	return rc.State()
}

// runRoom drives the connection state machine for a single room:
// disconnected → connecting → connected → reconnecting → connected, giving up
// to disconnected after maxConnectAttempts until nudged.
func (e *Engine) runRoom(ctx context.Context, room string, rc *roomConn) {
	for ctx.Err() == nil {
		client := e.newClient()
		client.OnConnect(func() {
			rc.mu.Lock()
			rc.state = StateConnected
			rc.attempts = 0
			rc.mu.Unlock()
			slog.Info("twitch room connected", "room", room)
		})
		client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
			e.handleTwitchMessage(room, msg)
		})
		client.Join(room)

		rc.mu.Lock()
		rc.client = client
		if rc.attempts == 0 {
			rc.state = StateConnecting
		} else {
			rc.state = StateReconnecting
		}
		rc.mu.Unlock()

		err := client.Connect() // blocks until the session ends
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			slog.Warn("twitch connection closed", "room", room, "error", err)
		}

		rc.mu.Lock()
		rc.attempts++
		attempts := rc.attempts
		rc.state = StateReconnecting
		rc.mu.Unlock()

		if attempts >= maxConnectAttempts {
			// Explicit give-up: stay disconnected until a message for this
			// room nudges a fresh attempt.
			rc.mu.Lock()
			rc.state = StateDisconnected
			rc.attempts = 0
			rc.mu.Unlock()
			slog.Error("twitch room giving up after repeated failures", "room", room, "attempts", attempts)
			select {
			case <-ctx.Done():
				return
			case <-rc.nudge:
				slog.Info("twitch room reconnect requested", "room", room)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffDelay(attempts)):
		}
	}
	rc.setState(StateDisconnected)
}

func backoffDelay(attempt int) time.Duration {
	d := time.Second << uint(attempt-1)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// handleTwitchMessage forwards one inbound Twitch chat message to its paired
// Discord channel. At-most-once: a failed send is logged and dropped.
func (e *Engine) handleTwitchMessage(room string, msg twitch.PrivateMessage) {
	// Own session's messages and Discord-origin echoes never re-enter the loop.
	if strings.EqualFold(msg.User.Name, e.cfg.BotUsername) {
		return
	}
	if strings.HasPrefix(msg.Message, e.cfg.DiscordTag()) {
		return
	}

	channelID, ok := e.router.DiscordFor(room)
	if !ok {
		return
	}

	text := Normalize(msg.Message)
	if text == "" {
		return
	}

	// Provider message ID is the preferred dedup key; normalized content is
	// the fallback for redeliveries that arrive with a fresh ID.
	if msg.ID != "" && e.guard.Seen(IDKey(msg.ID), e.ttl) {
		return
	}
	if e.guard.Seen(ContentKey("discord:"+channelID, text), e.ttl) {
		return
	}

	display := msg.User.DisplayName
	if display == "" {
		display = msg.User.Name
	}

	_, span := otel.Tracer("barkeep/relay").Start(context.Background(), "relay.twitch_to_discord",
		trace.WithAttributes(
			attribute.String("relay.room", room),
			attribute.String("relay.channel_id", channelID),
		))
	defer span.End()

	content := fmt.Sprintf("%s %s: %s", e.cfg.TwitchTag(), display, text)
	if _, err := e.discord.ChannelMessageSend(channelID, content); err != nil {
		slog.Warn("relay delivery to discord failed", "channel_id", channelID, "error", err)
	}
}

// HandleDiscordMessage forwards one guild message to its paired Twitch room.
// Never blocks on a dead connection: if the room is not connected a single
// reconnect is requested and the message is dropped (no queueing).
func (e *Engine) HandleDiscordMessage(m DiscordMessage) {
	if m.AuthorBot || m.Content == "" {
		return
	}

	room, ok := e.router.TwitchFor(m.ChannelID)
	if !ok {
		return
	}

	// Twitch-origin messages the relay itself posted must not bounce back.
	if strings.HasPrefix(m.Content, e.cfg.TwitchTag()) {
		return
	}

	text := Normalize(m.Content)
	if text == "" {
		return
	}

	if e.guard.Seen(ContentKey("twitch:"+room, text), e.ttl) {
		return
	}

	e.mu.Lock()
	rc := e.rooms[room]
	e.mu.Unlock()
	if rc == nil {
		return
	}

	if rc.State() != StateConnected {
		select {
		case rc.nudge <- struct{}{}:
		default:
		}
		slog.Warn("twitch room not connected; dropping message", "room", room, "state", rc.State().String())
		return
	}

	rc.mu.Lock()
	client := rc.client
	rc.mu.Unlock()
	if client == nil {
		return
	}

	client.Say(room, fmt.Sprintf("%s %s: %s", e.cfg.DiscordTag(), m.AuthorName, text))
}
