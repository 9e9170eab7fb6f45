package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nextlevelbuilder/barkeep/internal/audit"
	"github.com/nextlevelbuilder/barkeep/internal/bot"
	"github.com/nextlevelbuilder/barkeep/internal/config"
	"github.com/nextlevelbuilder/barkeep/internal/telemetry"
)

func runBot() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// First run: no config file and no guild configured → setup wizard.
	if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) && cfg.Discord.GuildID == "" {
		fmt.Println("No configuration found. Starting setup wizard...")
		fmt.Println()
		runOnboard()
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if cfg.Discord.Token == "" {
		// Config exists but the secret isn't loaded.
		envPath := filepath.Join(filepath.Dir(cfgPath), ".env.local")
		fmt.Println("No Discord bot token found. Did you forget to load your secrets?")
		fmt.Println()
		fmt.Printf("  source %s && ./barkeep\n", envPath)
		fmt.Println()
		fmt.Println("Or re-run the setup wizard:  ./barkeep onboard")
		os.Exit(1)
	}

	// OTLP trace export: no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	shutdownTracing, err := telemetry.InitTracing(cfg.Telemetry.ServiceName, Version)
	if err != nil {
		slog.Warn("tracing init failed", "error", err)
	} else {
		defer shutdownTracing()
	}

	auditStore, err := audit.Open(config.ExpandHome(cfg.Audit.DBPath), resolveMigrationsDir())
	if err != nil {
		slog.Error("failed to open audit database", "error", err)
		os.Exit(1)
	}
	defer auditStore.Close()

	b, err := bot.New(cfg, auditStore)
	if err != nil {
		slog.Error("failed to assemble bot", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	slog.Info("barkeep starting",
		"version", Version,
		"guild", cfg.Discord.GuildID,
		"relay", cfg.Relay.Enabled(),
	)

	if err := b.Run(ctx); err != nil {
		slog.Error("bot error", "error", err)
		os.Exit(1)
	}
}
