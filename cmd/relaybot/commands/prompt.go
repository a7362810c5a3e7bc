package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/persona"
)

// newPromptCmd creates the `relaybot prompt` command.
func newPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt rendered from the persona",
		Long: `Render the persona document the way the bot does on startup and print
the resulting system prompt. Credentials in the persona file are never
printed.

Examples:
  relaybot prompt
  relaybot prompt --persona personas/ava.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := loadPersona(cfg.Persona.Path, stderrLogger(cmd, cfg))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), persona.Render(doc))
			return nil
		},
	}
}
