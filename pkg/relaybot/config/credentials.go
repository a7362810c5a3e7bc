package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
)

// Environment variables consulted for credentials.
const (
	EnvAPIKey        = "OPENROUTER_API_KEY"
	EnvDiscordToken  = "DISCORD_BOT_TOKEN"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
)

// ErrCredentialMissing is returned when a required credential is not found in
// any source.
var ErrCredentialMissing = errors.New("credential missing")

// Source names where a credential was found.
type Source string

const (
	SourceNone    Source = ""
	SourceConfig  Source = "config"
	SourceEnv     Source = "env"
	SourcePersona Source = "persona"
	SourceKeyring Source = "keyring"
)

// Sources records where each credential came from, for startup logging.
type Sources struct {
	APIKey        Source
	DiscordToken  Source
	TelegramToken Source
}

// ResolveCredentials fills the API key and platform tokens in cfg using the
// chain config value → environment → persona document → OS keyring.
// Unresolved ${VAR} placeholders count as empty.
func ResolveCredentials(cfg *Config, creds persona.Credentials, logger *slog.Logger) Sources {
	if logger == nil {
		logger = slog.Default()
	}
	var src Sources
	cfg.API.APIKey, src.APIKey = resolve(cfg.API.APIKey, EnvAPIKey, creds.APIKey, KeyringAPIKey)
	cfg.Channels.Discord.Token, src.DiscordToken = resolve(cfg.Channels.Discord.Token, EnvDiscordToken, creds.DiscordToken, KeyringDiscordToken)
	cfg.Channels.Telegram.Token, src.TelegramToken = resolve(cfg.Channels.Telegram.Token, EnvTelegramToken, creds.TelegramToken, KeyringTelegramToken)

	logger.Debug("credentials resolved",
		"api_key", string(src.APIKey),
		"discord_token", string(src.DiscordToken),
		"telegram_token", string(src.TelegramToken),
	)
	return src
}

func resolve(configured, envVar, fromPersona, keyringKey string) (string, Source) {
	if configured != "" && !IsEnvReference(configured) {
		return configured, SourceConfig
	}
	if v := os.Getenv(envVar); v != "" {
		return v, SourceEnv
	}
	if fromPersona != "" {
		return fromPersona, SourcePersona
	}
	if v := GetKeyring(keyringKey); v != "" {
		return v, SourceKeyring
	}
	return "", SourceNone
}

// Validate checks that the resolved configuration can run. When
// needPlatform is set at least one platform token must be present.
func Validate(cfg *Config, needPlatform bool) error {
	if cfg.API.APIKey == "" {
		return fmt.Errorf("%w: API key (set %s, api.api_key, or run 'relaybot config set-key')",
			ErrCredentialMissing, EnvAPIKey)
	}
	if needPlatform && cfg.Channels.Discord.Token == "" && cfg.Channels.Telegram.Token == "" {
		return fmt.Errorf("%w: no platform token (set %s or %s)",
			ErrCredentialMissing, EnvDiscordToken, EnvTelegramToken)
	}
	return nil
}
