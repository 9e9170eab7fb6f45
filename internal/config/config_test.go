package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if got := cfg.TempVC.IdleDuration(); got != 120*time.Second {
		t.Errorf("default idle timeout = %v, want 120s", got)
	}
	if got := cfg.Relay.DedupWindow(); got != 8*time.Second {
		t.Errorf("default dedup window = %v, want 8s", got)
	}
	if got := cfg.Relay.TwitchTag(); got != "[Twitch]" {
		t.Errorf("default twitch tag = %q", got)
	}
}

func TestLoad_FileValuesAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		// JSON5: comments and trailing commas are fine
		"discord": {"guild_id": "123"},
		"tempvc": {"idle_timeout": "90s"},
	}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BARKEEP_DISCORD_TOKEN", "tok-from-env")
	t.Setenv("BARKEEP_GUILD_ID", "999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "tok-from-env" {
		t.Errorf("token = %q, want env value", cfg.Discord.Token)
	}
	if cfg.Discord.GuildID != "999" {
		t.Errorf("guild id = %q, want env override 999", cfg.Discord.GuildID)
	}
	if got := cfg.TempVC.IdleDuration(); got != 90*time.Second {
		t.Errorf("idle timeout = %v, want 90s from file", got)
	}
}

func TestSave_NeverPersistsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Discord.GuildID = "123"
	cfg.Discord.Token = "super-secret"
	cfg.Relay.OAuthToken = "oauth:secret"

	path := filepath.Join(t.TempDir(), "config.json")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "super-secret") || strings.Contains(string(data), "oauth:secret") {
		t.Errorf("saved config contains a secret:\n%s", data)
	}
}

func TestValidate_RejectsDuplicatePairings(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []RelayPair
		wantErr bool
	}{
		{
			name: "distinct pairs",
			pairs: []RelayPair{
				{TwitchChannel: "extA", DiscordChannelID: "1001"},
				{TwitchChannel: "extB", DiscordChannelID: "1002"},
			},
		},
		{
			name: "same room twice (case-insensitive)",
			pairs: []RelayPair{
				{TwitchChannel: "extA", DiscordChannelID: "1001"},
				{TwitchChannel: "EXTA", DiscordChannelID: "1002"},
			},
			wantErr: true,
		},
		{
			name: "same discord channel twice",
			pairs: []RelayPair{
				{TwitchChannel: "extA", DiscordChannelID: "1001"},
				{TwitchChannel: "extB", DiscordChannelID: "1001"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Discord.GuildID = "123"
			cfg.Relay.Pairs = tt.pairs
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPattern(t *testing.T) {
	s := SectionsConfig{CategoryNamePattern: "EA {game}", RoleNamePattern: ""}
	if got := s.CategoryName("Delta Force"); got != "EA Delta Force" {
		t.Errorf("CategoryName = %q", got)
	}
	if got := s.RoleName("FC26"); got != "FC26" {
		t.Errorf("RoleName with empty pattern = %q, want game name", got)
	}
}
