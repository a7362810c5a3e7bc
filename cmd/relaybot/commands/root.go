// Package commands implements the relaybot CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relaybot",
		Short: "relaybot - persona chat bot for Discord and Telegram",
		Long: `relaybot answers Discord and Telegram messages in the voice of a
persona document, using an OpenAI-compatible chat completion endpoint
(OpenRouter by default), and records every exchange in an audit log.

Examples:
  relaybot serve
  relaybot serve --channel telegram
  relaybot chat
  relaybot prompt --persona personas/ava.yaml
  relaybot audit tail -n 20`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newPromptCmd(),
		newSetupCmd(),
		newConfigCmd(),
		newAuditCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("persona", "", "persona file (overrides persona.path)")

	return rootCmd
}
