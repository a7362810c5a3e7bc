package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
	"github.com/jholhewres/relaybot/pkg/relaybot/channels/discord"
	"github.com/jholhewres/relaybot/pkg/relaybot/channels/telegram"
	"github.com/jholhewres/relaybot/pkg/relaybot/completion"
	"github.com/jholhewres/relaybot/pkg/relaybot/config"
	"github.com/jholhewres/relaybot/pkg/relaybot/heartbeat"
	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
	"github.com/jholhewres/relaybot/pkg/relaybot/pipeline"
	"github.com/jholhewres/relaybot/pkg/relaybot/trigger"
)

// shutdownTimeout bounds how long in-flight messages may take after a signal.
const shutdownTimeout = 35 * time.Second

// newServeCmd creates the `relaybot serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the messaging platforms and answer messages",
		Long: `Start relaybot as a long-running service, connecting every platform
that has a token and answering messages until interrupted.

Examples:
  relaybot serve
  relaybot serve --channel discord
  relaybot serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "platforms to enable (discord, telegram)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, os.Stdout)
	if configPath != "" {
		logger.Info("config loaded", "path", configPath)
	}

	// ── Persona and credentials ──
	doc, err := loadPersona(cfg.Persona.Path, logger)
	if err != nil {
		return err
	}
	sources := config.ResolveCredentials(cfg, doc.Credentials, logger)
	if err := config.Validate(cfg, true); err != nil {
		return err
	}
	if sources.APIKey == config.SourcePersona {
		logger.Warn("API key read from the persona file, consider moving it to the keyring",
			"hint", "relaybot config set-key")
	}
	store := persona.NewStore(doc)

	// ── Audit ──
	auditLog, err := openAudit(cfg.Audit, logger)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer auditLog.Close()

	// ── Channels ──
	manager := channels.NewManager(logger)
	filter, _ := cmd.Flags().GetStringSlice("channel")

	if cfg.Channels.Discord.Token != "" && shouldEnable("discord", filter) {
		if err := manager.Register(discord.New(cfg.Channels.Discord, logger)); err != nil {
			return err
		}
	}
	if cfg.Channels.Telegram.Token != "" && shouldEnable("telegram", filter) {
		if err := manager.Register(telegram.New(cfg.Channels.Telegram, logger)); err != nil {
			return err
		}
	}
	if len(manager.Names()) == 0 {
		return fmt.Errorf("%w: no platform enabled for %v", config.ErrCredentialMissing, filter)
	}

	// ── Pipeline ──
	client := completion.NewClient(cfg.API, logger)
	p := pipeline.New(cfg.Replies, store, trigger.NewPolicy(logger), client, manager, auditLog, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	if cfg.Persona.Watch {
		w := persona.NewWatcher(cfg.Persona.Path, cfg.Persona.WatchInterval, store, logger)
		go w.Start(ctx)
	}

	var hb *heartbeat.Heartbeat
	if cfg.Heartbeat.Enabled {
		hb, err = heartbeat.New(cfg.Heartbeat.Schedule, manager, logger)
		if err != nil {
			manager.Stop()
			return err
		}
		if err := hb.Start(); err != nil {
			manager.Stop()
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		p.Run(ctx, manager.Messages())
		close(done)
	}()

	// ── Wait for shutdown ──
	logger.Info("relaybot running. Press Ctrl+C to stop.",
		"persona", store.Document().Name,
		"channels", manager.Names(),
		"model", cfg.API.Model,
	)
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping...")

	// In-flight messages finish before the channels go away.
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		logger.Warn("in-flight messages did not finish, forcing exit", "timeout", shutdownTimeout)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if hb != nil {
		hb.Stop(stopCtx)
	}
	manager.Stop()

	logger.Info("shutdown complete")
	return nil
}

// shouldEnable checks if a platform passes the --channel filter.
func shouldEnable(name string, filter []string) bool {
	return len(filter) == 0 || slices.Contains(filter, name)
}
