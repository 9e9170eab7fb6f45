package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		TempVC: TempVCConfig{
			Prefix:      "Temp • ",
			IdleTimeout: "120s",
		},
		Relay: RelayConfig{
			DedupTTL:   "8s",
			TagTwitch:  "[Twitch]",
			TagDiscord: "[Discord]",
		},
		Audit: AuditConfig{
			DBPath: "~/.barkeep/audit.db",
		},
		Reminders: RemindersConfig{
			DataFile:     "~/.barkeep/activity_reminders.json",
			Timezone:     "Asia/Hong_Kong",
			RemindBefore: 5,
		},
		Sections: SectionsConfig{
			CategoryNamePattern: "{game}",
			RoleNamePattern:     "{game}",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "barkeep",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envStr("BARKEEP_DISCORD_TOKEN", &c.Discord.Token)
	envStr("BARKEEP_GUILD_ID", &c.Discord.GuildID)
	envStr("BARKEEP_LOG_CHANNEL_ID", &c.Discord.LogChannelID)
	envStr("BARKEEP_VERIFIED_ROLE_ID", &c.Discord.VerifiedRoleID)
	envStr("BARKEEP_HELPER_ROLE_ID", &c.Discord.HelperRoleID)

	envStr("BARKEEP_TWITCH_USERNAME", &c.Relay.BotUsername)
	envStr("BARKEEP_TWITCH_OAUTH", &c.Relay.OAuthToken)

	envStr("BARKEEP_AUDIT_DB", &c.Audit.DBPath)
	envStr("BARKEEP_REMINDERS_FILE", &c.Reminders.DataFile)
	envStr("BARKEEP_TIMEZONE", &c.Reminders.Timezone)
}

// Save writes the config to a JSON file. Secrets carry `json:"-"` tags and
// never persist.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
