package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jholhewres/relaybot/pkg/relaybot/audit"
)

// newAuditCmd creates the `relaybot audit` command group.
func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect recorded exchanges",
	}
	cmd.AddCommand(newAuditTailCmd())
	return cmd
}

func newAuditTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the most recent exchanges from the audit database",
		Long: `Print the most recent exchanges stored in the SQLite audit database
(audit.database), oldest first, in the audit log format.

Examples:
  relaybot audit tail
  relaybot audit tail -n 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Audit.Database == "" {
				return fmt.Errorf("audit.database is not configured")
			}
			n, _ := cmd.Flags().GetInt("lines")

			sink, err := audit.OpenSQLiteSink(cfg.Audit.Database)
			if err != nil {
				return err
			}
			defer sink.Close()

			records, err := sink.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			total, err := sink.Count(cmd.Context())
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records)
			fmt.Fprintf(cmd.OutOrStdout(), "\n(%d of %d records)\n", len(records), total)
			return nil
		},
	}
	cmd.Flags().IntP("lines", "n", 10, "number of records to show")
	return cmd
}

// printRecords writes records oldest first. Recent returns newest first.
func printRecords(w io.Writer, records []audit.Record) {
	for i := len(records) - 1; i >= 0; i-- {
		fmt.Fprint(w, audit.Format(records[i]))
	}
}
