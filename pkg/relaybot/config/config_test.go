package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/jholhewres/relaybot/pkg/relaybot/completion"
	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("api:\n  model: meta/llama-3\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.API.Model != "meta/llama-3" {
		t.Errorf("Model = %q", cfg.API.Model)
	}
	if cfg.API.Endpoint != completion.DefaultEndpoint || cfg.API.MaxTokens != completion.DefaultMaxTokens {
		t.Errorf("defaults lost: %+v", cfg.API)
	}
	if cfg.Persona.Path != "character.json" || !cfg.Audit.Stdout || !cfg.Replies.SendTyping {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseDurationsAndOverrides(t *testing.T) {
	data := `
persona:
  watch: true
  watch_interval: 2s
api:
  timeout: 10s
  temperature: 0.7
replies:
  transport_fallback: "upstream is down"
channels:
  telegram:
    allowed_chats: [1, -2]
heartbeat:
  enabled: false
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Persona.Watch || cfg.Persona.WatchInterval != 2*time.Second {
		t.Errorf("Persona = %+v", cfg.Persona)
	}
	if cfg.API.Timeout != 10*time.Second || cfg.API.Temperature != 0.7 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Replies.TransportFallback != "upstream is down" {
		t.Errorf("TransportFallback = %q", cfg.Replies.TransportFallback)
	}
	if cfg.Replies.MalformedFallback == "" {
		t.Error("MalformedFallback default lost")
	}
	if len(cfg.Channels.Telegram.AllowedChats) != 2 || !cfg.Channels.Telegram.RespondToDMs {
		t.Errorf("Telegram = %+v", cfg.Channels.Telegram)
	}
	if cfg.Heartbeat.Enabled {
		t.Error("heartbeat should be disabled")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("api: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RB_SET", "value")
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"simple", "k: ${RB_SET}", "k: value", false},
		{"bare", "k: $RB_SET", "k: value", false},
		{"unset keeps placeholder", "k: ${RB_UNSET_X}", "k: ${RB_UNSET_X}", false},
		{"default", "k: ${RB_UNSET_X:-fallback}", "k: fallback", false},
		{"default ignored when set", "k: ${RB_SET:-fallback}", "k: value", false},
		{"required set", "k: ${RB_SET:?needed}", "k: value", false},
		{"required unset", "k: ${RB_UNSET_X:?needed}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !strings.Contains(err.Error(), "RB_UNSET_X - needed") {
					t.Errorf("error = %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadResolvesPathsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RB_TEST_MODEL", "anthropic/claude")
	path := filepath.Join(dir, "config.yaml")
	data := `
persona:
  path: personas/ava.yaml
api:
  model: ${RB_TEST_MODEL}
audit:
  file: /var/log/relaybot.log
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Model != "anthropic/claude" {
		t.Errorf("Model = %q", cfg.API.Model)
	}
	if cfg.Persona.Path != filepath.Join(dir, "personas", "ava.yaml") {
		t.Errorf("Persona.Path = %q", cfg.Persona.Path)
	}
	if cfg.Audit.File != "/var/log/relaybot.log" {
		t.Errorf("Audit.File = %q", cfg.Audit.File)
	}
	if cfg.Audit.Database != filepath.Join(dir, "data", "audit.db") {
		t.Errorf("Audit.Database = %q", cfg.Audit.Database)
	}
}

func TestLoadMissingRequiredVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("api:\n  api_key: ${RB_MISSING_KEY:?set the key}\n"), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unset required variable")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveSanitizesAndBacksUp(t *testing.T) {
	t.Setenv(EnvAPIKey, "sk-or-secret")
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg := DefaultConfig()
	cfg.API.APIKey = "sk-or-secret"
	cfg.Channels.Discord.Token = "literal-token"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-or-secret") {
		t.Error("secret from environment written to disk")
	}
	if !strings.Contains(string(data), "${OPENROUTER_API_KEY}") {
		t.Error("expected env reference for the API key")
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("backup not written: %v", err)
	}

	loaded, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse saved config: %v", err)
	}
	if loaded.API.Timeout != cfg.API.Timeout || loaded.Channels.Discord.Token != "literal-token" {
		t.Errorf("saved config does not load back: %+v", loaded)
	}
}

func TestResolveCredentialsOrder(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvDiscordToken, "env-discord")
	t.Setenv(EnvTelegramToken, "")
	if err := StoreKeyring(KeyringTelegramToken, "keyring-telegram"); err != nil {
		t.Fatalf("StoreKeyring: %v", err)
	}
	defer DeleteKeyring(KeyringTelegramToken)

	cfg := DefaultConfig()
	cfg.API.APIKey = "${OPENROUTER_API_KEY}"
	cfg.Channels.Discord.Token = ""

	src := ResolveCredentials(cfg, persona.Credentials{
		APIKey:       "persona-key",
		DiscordToken: "persona-discord",
	}, nil)

	if cfg.API.APIKey != "persona-key" || src.APIKey != SourcePersona {
		t.Errorf("APIKey = %q from %q", cfg.API.APIKey, src.APIKey)
	}
	if cfg.Channels.Discord.Token != "env-discord" || src.DiscordToken != SourceEnv {
		t.Errorf("Discord = %q from %q", cfg.Channels.Discord.Token, src.DiscordToken)
	}
	if cfg.Channels.Telegram.Token != "keyring-telegram" || src.TelegramToken != SourceKeyring {
		t.Errorf("Telegram = %q from %q", cfg.Channels.Telegram.Token, src.TelegramToken)
	}

	cfg.API.APIKey = "from-config"
	if ResolveCredentials(cfg, persona.Credentials{APIKey: "persona-key"}, nil).APIKey != SourceConfig {
		t.Error("a configured value must win")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg, false); !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("missing API key: err = %v", err)
	}
	cfg.API.APIKey = "k"
	if err := Validate(cfg, false); err != nil {
		t.Errorf("chat mode needs no platform: %v", err)
	}
	if err := Validate(cfg, true); !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("serve without tokens: err = %v", err)
	}
	cfg.Channels.Telegram.Token = "t"
	if err := Validate(cfg, true); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	if !KeyringAvailable() {
		t.Fatal("mock keyring should be available")
	}
	if err := StoreKeyring(KeyringAPIKey, "secret"); err != nil {
		t.Fatal(err)
	}
	if got := GetKeyring(KeyringAPIKey); got != "secret" {
		t.Errorf("GetKeyring = %q", got)
	}
	if err := DeleteKeyring(KeyringAPIKey); err != nil {
		t.Fatal(err)
	}
	if err := DeleteKeyring(KeyringAPIKey); err != nil {
		t.Errorf("deleting a missing entry: %v", err)
	}
	if GetKeyring(KeyringAPIKey) != "" {
		t.Error("entry still present after delete")
	}
}
