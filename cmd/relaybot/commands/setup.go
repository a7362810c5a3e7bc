package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/config"
)

// newSetupCmd creates the `relaybot setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create config.yaml.
Asks for the persona file, model and credentials. Secrets are stored in
the OS keyring when available, otherwise in .env. config.yaml only holds
${VAR} references.

Examples:
  relaybot setup
  relaybot setup --output ./configs/config.yaml`,
		RunE: runSetup,
	}
	cmd.Flags().StringP("output", "o", "config.yaml", "where to write the configuration")
	return cmd
}

// setupAnswers holds the values collected by the wizard.
type setupAnswers struct {
	PersonaPath   string
	Model         string
	APIKey        string
	DiscordToken  string
	TelegramToken string
	WatchPersona  bool
	AuditFile     string
}

// modelOptions are offered in the wizard; any OpenRouter model ID works in
// config.yaml.
var modelOptions = []huh.Option[string]{
	huh.NewOption("GPT-3.5 Turbo (default)", "openai/gpt-3.5-turbo"),
	huh.NewOption("GPT-4o Mini", "openai/gpt-4o-mini"),
	huh.NewOption("Claude 3.5 Haiku", "anthropic/claude-3.5-haiku"),
	huh.NewOption("Llama 3.1 8B Instruct", "meta-llama/llama-3.1-8b-instruct"),
	huh.NewOption("Mistral 7B Instruct", "mistralai/mistral-7b-instruct"),
}

func runSetup(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	defaults := config.DefaultConfig()

	answers := setupAnswers{
		PersonaPath: defaults.Persona.Path,
		Model:       defaults.API.Model,
	}

	notEmpty := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("relaybot setup").
				Description("Creates "+output+". Leave a token empty to disable that platform."),
			huh.NewInput().
				Title("Persona file").
				Description("JSON, or YAML with a .yaml/.yml extension").
				Value(&answers.PersonaPath).
				Validate(notEmpty),
			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions...).
				Value(&answers.Model),
			huh.NewConfirm().
				Title("Reload the persona when the file changes?").
				Value(&answers.WatchPersona),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OpenRouter API key").
				EchoMode(huh.EchoModePassword).
				Value(&answers.APIKey).
				Validate(notEmpty),
			huh.NewInput().
				Title("Discord bot token").
				EchoMode(huh.EchoModePassword).
				Value(&answers.DiscordToken),
			huh.NewInput().
				Title("Telegram bot token").
				EchoMode(huh.EchoModePassword).
				Value(&answers.TelegramToken),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Plain text audit log (optional)").
				Placeholder("logs/audit.log").
				Value(&answers.AuditFile),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("Setup cancelled.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	cfg := buildSetupConfig(answers)

	where, err := storeSecrets(answers, config.KeyringAvailable(), ".env")
	if err != nil {
		return err
	}
	if err := config.Save(cfg, output); err != nil {
		return err
	}

	fmt.Printf("\nConfiguration written to %s\n", output)
	fmt.Printf("Secrets stored in %s\n", where)
	if answers.DiscordToken == "" && answers.TelegramToken == "" {
		fmt.Println("No platform token given. 'relaybot chat' works; 'relaybot serve' needs a token.")
	} else {
		fmt.Println("Start the bot with: relaybot serve")
	}
	return nil
}

// buildSetupConfig turns wizard answers into a config. Credentials are
// written as ${VAR} references only.
func buildSetupConfig(a setupAnswers) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Persona.Path = strings.TrimSpace(a.PersonaPath)
	cfg.Persona.Watch = a.WatchPersona
	if a.Model != "" {
		cfg.API.Model = a.Model
	}
	cfg.API.APIKey = "${" + config.EnvAPIKey + "}"
	if a.DiscordToken != "" {
		cfg.Channels.Discord.Token = "${" + config.EnvDiscordToken + "}"
	}
	if a.TelegramToken != "" {
		cfg.Channels.Telegram.Token = "${" + config.EnvTelegramToken + "}"
	}
	cfg.Audit.File = strings.TrimSpace(a.AuditFile)
	return cfg
}

// storeSecrets saves the non-empty secrets in the OS keyring, or merges them
// into envPath when no keyring is available. It returns where they went.
func storeSecrets(a setupAnswers, useKeyring bool, envPath string) (string, error) {
	secrets := []struct {
		keyringKey, envVar, value string
	}{
		{config.KeyringAPIKey, config.EnvAPIKey, a.APIKey},
		{config.KeyringDiscordToken, config.EnvDiscordToken, a.DiscordToken},
		{config.KeyringTelegramToken, config.EnvTelegramToken, a.TelegramToken},
	}

	if useKeyring {
		for _, s := range secrets {
			if s.value == "" {
				continue
			}
			if err := config.StoreKeyring(s.keyringKey, s.value); err != nil {
				return "", err
			}
		}
		return "the OS keyring", nil
	}

	env, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading %s: %w", envPath, err)
	}
	if env == nil {
		env = map[string]string{}
	}
	for _, s := range secrets {
		if s.value != "" {
			env[s.envVar] = s.value
		}
	}
	if err := godotenv.Write(env, envPath); err != nil {
		return "", fmt.Errorf("writing %s: %w", envPath, err)
	}
	if err := os.Chmod(envPath, 0o600); err != nil {
		return "", fmt.Errorf("restricting %s: %w", envPath, err)
	}
	return envPath, nil
}
