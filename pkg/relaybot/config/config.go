// Package config defines the relaybot configuration, its YAML loader and the
// credential resolution chain (config/env, persona file, OS keyring).
package config

import (
	"time"

	"github.com/jholhewres/relaybot/pkg/relaybot/channels/discord"
	"github.com/jholhewres/relaybot/pkg/relaybot/channels/telegram"
	"github.com/jholhewres/relaybot/pkg/relaybot/completion"
	"github.com/jholhewres/relaybot/pkg/relaybot/pipeline"
)

// Config is the root relaybot configuration.
type Config struct {
	// Persona configures where the persona document is read from.
	Persona PersonaConfig `yaml:"persona"`

	// API configures the chat completion endpoint.
	API completion.Config `yaml:"api"`

	// Channels configures the messaging platforms.
	Channels ChannelsConfig `yaml:"channels"`

	// Replies configures fallback texts and typing indicators.
	Replies pipeline.Config `yaml:"replies"`

	// Audit configures where exchanges are recorded.
	Audit AuditConfig `yaml:"audit"`

	// Heartbeat configures the periodic channel health report.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// PersonaConfig configures the persona document.
type PersonaConfig struct {
	// Path is the persona file (JSON, or YAML by extension).
	Path string `yaml:"path"`

	// Watch reloads the persona when the file changes.
	Watch bool `yaml:"watch"`

	// WatchInterval is how often the file is checked.
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// ChannelsConfig holds per-platform settings. A platform is enabled when its
// token resolves to a non-empty value.
type ChannelsConfig struct {
	Discord  discord.Config  `yaml:"discord"`
	Telegram telegram.Config `yaml:"telegram"`
}

// AuditConfig selects the audit sinks. Any combination may be enabled.
type AuditConfig struct {
	// File is a plain text log of formatted exchanges.
	File string `yaml:"file"`

	// Database is a SQLite file holding one row per exchange.
	Database string `yaml:"database"`

	// Stdout writes each exchange to the process log.
	Stdout bool `yaml:"stdout"`
}

// HeartbeatConfig configures the health reporter.
type HeartbeatConfig struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression (seconds optional) or a descriptor such
	// as "@every 5m".
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default relaybot configuration.
func DefaultConfig() *Config {
	return &Config{
		Persona: PersonaConfig{
			Path:          "character.json",
			WatchInterval: 5 * time.Second,
		},
		API: completion.DefaultConfig(),
		Channels: ChannelsConfig{
			Discord:  discord.DefaultConfig(),
			Telegram: telegram.DefaultConfig(),
		},
		Replies: pipeline.DefaultConfig(),
		Audit: AuditConfig{
			Database: "data/audit.db",
			Stdout:   true,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Schedule: "@every 5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
