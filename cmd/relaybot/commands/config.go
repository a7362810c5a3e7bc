package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/relaybot/pkg/relaybot/config"
)

// keyAliases maps user-facing names to keyring entries.
var keyAliases = map[string]string{
	"api":      config.KeyringAPIKey,
	"discord":  config.KeyringDiscordToken,
	"telegram": config.KeyringTelegramToken,
}

// newConfigCmd creates the `relaybot config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and stored credentials",
		Long: `Manage relaybot configuration and the credentials kept in the OS keyring.

Examples:
  relaybot config init
  relaybot config show
  relaybot config set-key              # OpenRouter API key
  relaybot config set-key discord      # Discord bot token
  relaybot config delete-key telegram`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigDeleteKeyCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.DefaultConfig()
			cfg.API.APIKey = "${" + config.EnvAPIKey + "}"
			cfg.Channels.Discord.Token = "${" + config.EnvDiscordToken + "}"
			cfg.Channels.Telegram.Token = "${" + config.EnvTelegramToken + "}"
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration created at %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "config.yaml", "where to write the configuration")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := loadPersona(cfg.Persona.Path, stderrLogger(cmd, cfg))
			if err != nil {
				return err
			}
			src := config.ResolveCredentials(cfg, doc.Credentials, stderrLogger(cmd, cfg))

			cfg.API.APIKey = maskSecret(cfg.API.APIKey, src.APIKey)
			cfg.Channels.Discord.Token = maskSecret(cfg.Channels.Discord.Token, src.DiscordToken)
			cfg.Channels.Telegram.Token = maskSecret(cfg.Channels.Telegram.Token, src.TelegramToken)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", path, data)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-key [api|discord|telegram]",
		Short:     "Store a credential in the OS keyring",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"api", "discord", "telegram"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyringKeyFor(args)
			if err != nil {
				return err
			}
			if !config.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available; set the value in .env instead")
			}

			var value string
			if config.IsTerminal() {
				value, err = config.ReadPassword("Value (hidden input): ")
				if err != nil {
					return err
				}
			} else {
				line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				value = strings.TrimSpace(line)
			}
			if value == "" {
				return fmt.Errorf("empty value, nothing stored")
			}

			if err := config.StoreKeyring(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the OS keyring.\n", key)
			return nil
		},
	}
}

func newConfigDeleteKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete-key [api|discord|telegram]",
		Short:     "Remove a credential from the OS keyring",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"api", "discord", "telegram"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyringKeyFor(args)
			if err != nil {
				return err
			}
			if err := config.DeleteKeyring(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the OS keyring.\n", key)
			return nil
		},
	}
}

// keyringKeyFor resolves the optional credential argument; the API key is
// the default.
func keyringKeyFor(args []string) (string, error) {
	if len(args) == 0 {
		return config.KeyringAPIKey, nil
	}
	key, ok := keyAliases[strings.ToLower(args[0])]
	if !ok {
		return "", fmt.Errorf("unknown credential %q (want api, discord or telegram)", args[0])
	}
	return key, nil
}

// maskSecret hides all but the last four characters and notes the source.
func maskSecret(value string, src config.Source) string {
	if value == "" {
		return ""
	}
	masked := "****"
	if len(value) > 8 {
		masked += value[len(value)-4:]
	}
	return masked + " (" + string(src) + ")"
}
