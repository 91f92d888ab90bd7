package main

import (
	"fmt"
	"os"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/csvio"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded transactions as CSV",
		Long: `Export recorded transactions as CSV.

The header matches what 'ledger import csv' reads by default, so an export
can be re-imported without a column mapping.`,
		Example: `  ledger export --from 2024-01-01 --to 2024-12-31 -o 2024.csv
  ledger export --account Checking`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			from, _ := flags.GetString("from")
			to, _ := flags.GetString("to")
			days, _ := flags.GetInt("days")
			account, _ := flags.GetString("account")
			output, _ := flags.GetString("output")

			r, err := dateRange(from, to, days)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := transactionsIn(ctx, store, r, account)
			if err != nil {
				return err
			}

			writer := csvio.Writer{DateFormat: dateLayout}
			if output == "" || output == "-" {
				return writer.Write(cmd.OutOrStdout(), txns)
			}

			f, err := os.Create(config.ExpandPath(output)) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := writer.Write(f, txns); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d transactions to %s", len(txns), output)))
			return nil
		},
	}

	cmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: --days before --to)")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: today)")
	cmd.Flags().Int("days", 365, "Days to look back when --from is not set")
	cmd.Flags().String("account", "", "Only export this account")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}
