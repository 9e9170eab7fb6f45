package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the Barkeep bot.
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	TempVC    TempVCConfig    `json:"tempvc,omitempty"`
	Relay     RelayConfig     `json:"relay,omitempty"`
	Audit     AuditConfig     `json:"audit,omitempty"`
	Reminders RemindersConfig `json:"reminders,omitempty"`
	Sections  SectionsConfig  `json:"sections,omitempty"`
	Welcome   WelcomeConfig   `json:"welcome,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// DiscordConfig holds the gateway credentials and the guild the bot serves.
// Token is NEVER read from config.json (secret), only from env BARKEEP_DISCORD_TOKEN.
type DiscordConfig struct {
	Token          string   `json:"-"`                          // from env BARKEEP_DISCORD_TOKEN only
	GuildID        string   `json:"guild_id"`
	LogChannelID   string   `json:"log_channel_id,omitempty"`   // private moderation log channel
	VerifiedRoleID string   `json:"verified_role_id,omitempty"` // members allowed to use /vc_new, /vc_teardown, /tu
	HelperRoleID   string   `json:"helper_role_id,omitempty"`   // members allowed to manage reminders and roles
	AdminRoleIDs   []string `json:"admin_role_ids,omitempty"`   // extra roles given manage rights on created sections
}

// TempVCConfig configures the temporary voice channel lifecycle.
type TempVCConfig struct {
	Prefix      string `json:"prefix,omitempty"`       // name prefix for created rooms (default "Temp • ")
	IdleTimeout string `json:"idle_timeout,omitempty"` // how long an empty room survives (default "120s", Go duration)
}

// IdleDuration returns the parsed idle timeout with the default applied.
func (t TempVCConfig) IdleDuration() time.Duration {
	if t.IdleTimeout != "" {
		if d, err := time.ParseDuration(t.IdleTimeout); err == nil && d > 0 {
			return d
		}
	}
	return 120 * time.Second
}

// RelayPair maps one Twitch channel to one Discord text channel.
type RelayPair struct {
	TwitchChannel    string `json:"twitch_channel"`
	DiscordChannelID string `json:"discord_channel_id"`
}

// RelayConfig configures the Twitch chat relay.
// OAuthToken is NEVER read from config.json, only from env BARKEEP_TWITCH_OAUTH.
type RelayConfig struct {
	BotUsername string      `json:"bot_username,omitempty"`
	OAuthToken  string      `json:"-"` // from env BARKEEP_TWITCH_OAUTH only
	Pairs       []RelayPair `json:"pairs,omitempty"`
	DedupTTL    string      `json:"dedup_ttl,omitempty"`   // duplicate suppression window (default "8s")
	TagTwitch   string      `json:"tag_twitch,omitempty"`  // provenance prefix for Twitch-origin messages
	TagDiscord  string      `json:"tag_discord,omitempty"` // provenance prefix for Discord-origin messages
}

// DedupWindow returns the parsed dedup TTL with the default applied.
func (r RelayConfig) DedupWindow() time.Duration {
	if r.DedupTTL != "" {
		if d, err := time.ParseDuration(r.DedupTTL); err == nil && d > 0 {
			return d
		}
	}
	return 8 * time.Second
}

// TwitchTag returns the provenance prefix for Twitch-origin messages.
func (r RelayConfig) TwitchTag() string {
	if r.TagTwitch != "" {
		return r.TagTwitch
	}
	return "[Twitch]"
}

// DiscordTag returns the provenance prefix for Discord-origin messages.
func (r RelayConfig) DiscordTag() string {
	if r.TagDiscord != "" {
		return r.TagDiscord
	}
	return "[Discord]"
}

// Enabled reports whether the relay has anything to bridge.
func (r RelayConfig) Enabled() bool {
	return r.BotUsername != "" && len(r.Pairs) > 0
}

// AuditConfig configures the embedded audit trail database.
type AuditConfig struct {
	DBPath string `json:"db_path,omitempty"` // sqlite file (default "~/.barkeep/audit.db")
}

// RemindersConfig configures the activity reminder scheduler.
type RemindersConfig struct {
	DataFile     string `json:"data_file,omitempty"`     // JSON store (default "~/.barkeep/activity_reminders.json")
	Timezone     string `json:"timezone,omitempty"`      // IANA name (default "Asia/Hong_Kong")
	RemindBefore int    `json:"remind_before,omitempty"` // minutes before start for the pre-reminder (default 5)
}

// Location resolves the configured timezone, falling back to local time.
func (r RemindersConfig) Location() *time.Location {
	name := r.Timezone
	if name == "" {
		name = "Asia/Hong_Kong"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// LeadMinutes returns the pre-reminder lead time with the default applied.
func (r RemindersConfig) LeadMinutes() int {
	if r.RemindBefore > 0 {
		return r.RemindBefore
	}
	return 5
}

// SectionsConfig configures templated category duplication.
type SectionsConfig struct {
	TemplateCategoryID  string `json:"template_category_id,omitempty"`
	TemplateForumID     string `json:"template_forum_id,omitempty"`     // optional source for forum tag cloning
	CategoryNamePattern string `json:"category_name_pattern,omitempty"` // "{game}" placeholder
	RoleNamePattern     string `json:"role_name_pattern,omitempty"`

	// Channels created when the template lacks that kind.
	FallbackText  []string `json:"fallback_text,omitempty"`
	FallbackVoice []string `json:"fallback_voice,omitempty"`
	FallbackForum string   `json:"fallback_forum,omitempty"`
}

// CategoryName expands the category name pattern for a game.
func (s SectionsConfig) CategoryName(game string) string {
	return expandPattern(s.CategoryNamePattern, game)
}

// RoleName expands the role name pattern for a game.
func (s SectionsConfig) RoleName(game string) string {
	return expandPattern(s.RoleNamePattern, game)
}

func expandPattern(pattern, game string) string {
	if pattern == "" {
		return game
	}
	return strings.ReplaceAll(pattern, "{game}", game)
}

// WelcomeConfig configures the member welcome message and its channel links.
type WelcomeConfig struct {
	WelcomeChannelID string `json:"welcome_channel_id,omitempty"`
	RulesChannelID   string `json:"rules_channel_id,omitempty"`
	GuideChannelID   string `json:"guide_channel_id,omitempty"`
	SupportChannelID string `json:"support_channel_id,omitempty"`
}

// TelemetryConfig configures optional OTLP trace export.
// Endpoint comes from env OTEL_EXPORTER_OTLP_ENDPOINT (exporter convention).
type TelemetryConfig struct {
	ServiceName string `json:"service_name,omitempty"` // default "barkeep"
}

// Validate checks invariants that cannot be expressed structurally.
// Relay pairings must be 1:1 in both directions.
func (c *Config) Validate() error {
	if c.Discord.GuildID == "" {
		return fmt.Errorf("discord.guild_id is required")
	}
	seenRoom := make(map[string]bool)
	seenChannel := make(map[string]bool)
	for _, p := range c.Relay.Pairs {
		if p.TwitchChannel == "" || p.DiscordChannelID == "" {
			return fmt.Errorf("relay pair needs both twitch_channel and discord_channel_id")
		}
		room := strings.ToLower(p.TwitchChannel)
		if seenRoom[room] {
			return fmt.Errorf("relay: twitch channel %q mapped twice", p.TwitchChannel)
		}
		if seenChannel[p.DiscordChannelID] {
			return fmt.Errorf("relay: discord channel %q mapped twice", p.DiscordChannelID)
		}
		seenRoom[room] = true
		seenChannel[p.DiscordChannelID] = true
	}
	return nil
}
