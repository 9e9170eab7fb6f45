// Package bot owns the Discord session: gateway intents, event handler
// wiring, slash command registration and dispatch, and the log channel sink.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/barkeep/internal/audit"
	"github.com/nextlevelbuilder/barkeep/internal/config"
	"github.com/nextlevelbuilder/barkeep/internal/relay"
	"github.com/nextlevelbuilder/barkeep/internal/reminder"
	"github.com/nextlevelbuilder/barkeep/internal/roles"
	"github.com/nextlevelbuilder/barkeep/internal/sections"
	"github.com/nextlevelbuilder/barkeep/internal/tempvc"
	"github.com/nextlevelbuilder/barkeep/internal/welcome"
)

// Bot is the assembled application: one gateway session plus every feature
// subsystem hanging off it.
type Bot struct {
	cfg     *config.Config
	session *discordgo.Session

	botUserID string
	started   time.Time

	logbook    *Logbook
	tempVC     *tempvc.Manager
	relay      *relay.Engine
	duplicator *sections.Duplicator
	versioner  *sections.Versioner
	roles      *roles.Manager
	reminders  *reminder.Store
	scheduler  *reminder.Scheduler
	auditor    *audit.Auditor
	greeter    *welcome.Greeter

	cancel context.CancelFunc
}

// New assembles the bot. auditStore may be nil to run without persistence.
func New(cfg *config.Config, auditStore *audit.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildEmojis
	// Deleted and edited messages only carry content while cached.
	session.State.MaxMessageCount = 1000

	b := &Bot{cfg: cfg, session: session}
	b.logbook = NewLogbook(session, cfg.Discord.LogChannelID)

	b.tempVC = tempvc.New(session, b.voiceOccupancy, cfg.TempVC.Prefix, cfg.TempVC.IdleDuration())
	b.duplicator = sections.NewDuplicator(session, cfg.Sections, cfg.Discord.AdminRoleIDs)
	b.versioner = sections.NewVersioner(session)
	b.roles = roles.NewManager(session)
	b.auditor = audit.New(auditStore, b.logbook)
	b.greeter = welcome.New(cfg.Welcome, session, b.logbook, b.guildName)

	store, err := reminder.NewStore(config.ExpandHome(cfg.Reminders.DataFile))
	if err != nil {
		return nil, fmt.Errorf("open reminder store: %w", err)
	}
	b.reminders = store
	b.scheduler = reminder.NewScheduler(store, session, time.Duration(cfg.Reminders.LeadMinutes())*time.Minute, cfg.Reminders.Location())

	if cfg.Relay.Enabled() {
		router, err := relay.NewRouter(cfg.Relay.Pairs)
		if err != nil {
			return nil, fmt.Errorf("relay pairings: %w", err)
		}
		b.relay = relay.New(cfg.Relay, router, session)
	}

	return b, nil
}

// Run opens the session, registers commands and blocks until ctx ends.
func (b *Bot) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	defer cancel()

	b.registerHandlers()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer b.session.Close()

	user, err := b.session.User("@me")
	if err != nil {
		return fmt.Errorf("fetch bot identity: %w", err)
	}
	b.botUserID = user.ID
	b.started = time.Now()
	slog.Info("discord connected", "username", user.Username, "id", user.ID, "guild", b.cfg.Discord.GuildID)

	if err := b.registerCommands(); err != nil {
		return err
	}

	go b.scheduler.Run(runCtx)
	if b.relay != nil {
		if err := b.relay.Start(runCtx); err != nil {
			return fmt.Errorf("start relay: %w", err)
		}
	}

	<-runCtx.Done()
	return b.shutdown()
}

func (b *Bot) shutdown() error {
	slog.Info("shutting down")
	if b.relay != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.relay.Stop(stopCtx); err != nil {
			slog.Warn("relay stop failed", "error", err)
		}
	}
	b.tempVC.Shutdown()
	return nil
}

// voiceOccupancy counts members in a voice channel from gateway state.
func (b *Bot) voiceOccupancy(channelID string) int {
	guild, err := b.session.State.Guild(b.cfg.Discord.GuildID)
	if err != nil {
		return 0
	}
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n
}

// invokerVoiceChannelID returns the voice channel a member currently sits in,
// or "" when they are not in voice.
func (b *Bot) invokerVoiceChannelID(guildID, userID string) string {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

func (b *Bot) guildName(guildID string) string {
	if guild, err := b.session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return "the server"
}

// registerHandlers wires every gateway event to its subsystem.
func (b *Bot) registerHandlers() {
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) { b.onMessageCreate(m) })
	b.session.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) { b.onVoiceStateUpdate(v) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) { b.auditor.HandleDelete(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDeleteBulk) { b.auditor.HandleBulkDelete(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) { b.auditor.HandleUpdate(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) { b.greeter.HandleJoin(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberRemove) { b.greeter.HandleLeave(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberUpdate) { b.greeter.HandleUpdate(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildBanAdd) { b.greeter.HandleBan(m) })
	b.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildBanRemove) { b.greeter.HandleUnban(m) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleCreate) { b.greeter.HandleRoleCreate(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleUpdate) { b.greeter.HandleRoleUpdate(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildRoleDelete) { b.greeter.HandleRoleDelete(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelCreate) { b.greeter.HandleChannelCreate(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelUpdate) { b.greeter.HandleChannelUpdate(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.ChannelDelete) { b.greeter.HandleChannelDelete(e) })
	b.session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildEmojisUpdate) { b.greeter.HandleEmojisUpdate(e) })
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) { b.onInteraction(i) })
}

func (b *Bot) onMessageCreate(m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID != b.cfg.Discord.GuildID {
		return
	}
	if b.relay != nil {
		name := m.Author.Username
		if m.Member != nil && m.Member.Nick != "" {
			name = m.Member.Nick
		}
		b.relay.HandleDiscordMessage(relay.DiscordMessage{
			ChannelID:  m.ChannelID,
			AuthorBot:  m.Author.Bot || m.Author.ID == b.botUserID,
			AuthorName: name,
			Content:    m.Content,
		})
	}
}

// onVoiceStateUpdate logs the movement, then re-evaluates both sides of it:
// the channel left may now be empty, the channel joined is no longer.
func (b *Bot) onVoiceStateUpdate(v *discordgo.VoiceStateUpdate) {
	if v.GuildID != b.cfg.Discord.GuildID {
		return
	}
	b.greeter.HandleVoiceState(v)
	if v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID != v.ChannelID {
		b.tempVC.Observe(v.BeforeUpdate.ChannelID)
	}
	b.tempVC.Observe(v.ChannelID)
}
