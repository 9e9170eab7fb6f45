package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/barkeep/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

func runOnboard() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}

	var (
		guildID        = cfg.Discord.GuildID
		logChannelID   = cfg.Discord.LogChannelID
		verifiedRoleID = cfg.Discord.VerifiedRoleID
		helperRoleID   = cfg.Discord.HelperRoleID
		welcomeChannel = cfg.Welcome.WelcomeChannelID
		timezone       = cfg.Reminders.Timezone
		twitchUsername = cfg.Relay.BotUsername
		twitchChannel  string
		relayChannelID string
		save           = true
	)

	requireDigits := func(label string, optional bool) func(string) error {
		return func(s string) error {
			s = strings.TrimSpace(s)
			if s == "" {
				if optional {
					return nil
				}
				return fmt.Errorf("%s is required", label)
			}
			for _, r := range s {
				if r < '0' || r > '9' {
					return fmt.Errorf("%s must be a numeric Discord snowflake", label)
				}
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Guild ID").
				Description("The Discord server this bot manages (Server Settings → Widget, or right-click with developer mode)").
				Value(&guildID).
				Validate(requireDigits("guild ID", false)),
			huh.NewInput().
				Title("Moderation log channel ID").
				Description("Private channel for audit embeds and member logs (optional)").
				Value(&logChannelID).
				Validate(requireDigits("log channel ID", true)),
			huh.NewInput().
				Title("Verified role ID").
				Description("Members with this role may create temp voice channels and shuffle teams (optional)").
				Value(&verifiedRoleID).
				Validate(requireDigits("verified role ID", true)),
			huh.NewInput().
				Title("Helper role ID").
				Description("Members with this role may manage reminders and member roles (optional)").
				Value(&helperRoleID).
				Validate(requireDigits("helper role ID", true)),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Welcome channel ID").
				Description("Public channel for member join messages (optional)").
				Value(&welcomeChannel).
				Validate(requireDigits("welcome channel ID", true)),
			huh.NewInput().
				Title("Reminder timezone").
				Description("IANA name for activity reminders, e.g. Asia/Hong_Kong").
				Value(&timezone),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Twitch bot username").
				Description("Leave empty to disable the Twitch chat relay").
				Value(&twitchUsername),
			huh.NewInput().
				Title("Twitch channel to bridge").
				Description("Streamer login name (only if the relay is enabled)").
				Value(&twitchChannel),
			huh.NewInput().
				Title("Discord channel ID for that bridge").
				Value(&relayChannelID).
				Validate(requireDigits("relay channel ID", true)),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write configuration to %s?", cfgPath)).
				Value(&save),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println("Setup aborted:", err)
		os.Exit(1)
	}
	if !save {
		fmt.Println("Nothing written.")
		return
	}

	cfg.Discord.GuildID = strings.TrimSpace(guildID)
	cfg.Discord.LogChannelID = strings.TrimSpace(logChannelID)
	cfg.Discord.VerifiedRoleID = strings.TrimSpace(verifiedRoleID)
	cfg.Discord.HelperRoleID = strings.TrimSpace(helperRoleID)
	cfg.Welcome.WelcomeChannelID = strings.TrimSpace(welcomeChannel)
	cfg.Reminders.Timezone = strings.TrimSpace(timezone)
	cfg.Relay.BotUsername = strings.TrimSpace(twitchUsername)
	if tc, dc := strings.TrimSpace(twitchChannel), strings.TrimSpace(relayChannelID); tc != "" && dc != "" {
		cfg.Relay.Pairs = append(cfg.Relay.Pairs, config.RelayPair{
			TwitchChannel:    tc,
			DiscordChannelID: dc,
		})
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("Configuration invalid:", err)
		os.Exit(1)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Println("Failed to write config:", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s.\n", cfgPath)
	fmt.Println()
	fmt.Println("Secrets are read from environment variables, never from the config file:")
	fmt.Println()
	fmt.Println("  export BARKEEP_DISCORD_TOKEN=...   # Discord bot token")
	if cfg.Relay.BotUsername != "" {
		fmt.Println("  export BARKEEP_TWITCH_OAUTH=oauth:...   # Twitch chat token")
	}
	fmt.Println()
	fmt.Println("Then start the bot:  ./barkeep")
}
