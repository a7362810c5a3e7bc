package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/audit"
	"github.com/jholhewres/relaybot/pkg/relaybot/config"
	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
)

// resolveConfig loads the config file named by --config, or the first one
// found in the standard locations. Without a file the defaults are used and
// credentials come from the environment.
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		cfg = loaded
	} else {
		config.LoadEnvFiles()
		cfg = config.DefaultConfig()
	}

	if p, _ := cmd.Root().PersistentFlags().GetString("persona"); p != "" {
		cfg.Persona.Path = p
	}
	return cfg, configPath, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cmd *cobra.Command, cfg *config.Config, w io.Writer) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadPersona reads the persona document. A missing file is not fatal: the
// bot runs with an empty persona.
func loadPersona(path string, logger *slog.Logger) (*persona.Document, error) {
	doc, err := persona.Load(path)
	switch {
	case errors.Is(err, persona.ErrPersonaMissing):
		logger.Warn("persona file is missing, using an empty persona", "path", path)
		return doc, nil
	case err != nil:
		return nil, err
	}
	logger.Info("persona loaded", "path", path, "name", doc.Name)
	return doc, nil
}

// openAudit builds the audit logger from the audit section.
func openAudit(cfg config.AuditConfig, logger *slog.Logger) (*audit.Logger, error) {
	var sinks []audit.Sink
	if cfg.Stdout {
		sinks = append(sinks, audit.NewLogSink(logger))
	}
	if cfg.File != "" {
		fs, err := audit.OpenFileSink(cfg.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if cfg.Database != "" {
		db, err := audit.OpenSQLiteSink(cfg.Database)
		if err != nil {
			for _, s := range sinks {
				if c, ok := s.(io.Closer); ok {
					c.Close()
				}
			}
			return nil, err
		}
		sinks = append(sinks, db)
	}
	if len(sinks) == 0 {
		logger.Warn("no audit sink configured, exchanges will not be recorded")
	}
	return audit.NewLogger(logger, sinks...), nil
}

// stderrLogger is used by interactive commands so logs do not mix with the
// conversation on stdout.
func stderrLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return newLogger(cmd, cfg, os.Stderr)
}
