package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			statusOnly, _ := cmd.Flags().GetBool("status")

			dbPath := config.ExpandPath(viper.GetString(config.KeyDatabasePath))
			if dbPath == "" {
				dbPath = config.DefaultDatabasePath()
			}

			store, err := storage.NewSQLiteStorage(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			before, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if statusOnly {
				pending, err := store.PendingMigrations(ctx)
				if err != nil {
					return err
				}
				msg := fmt.Sprintf("%s: schema version %d of %d", dbPath, before, storage.ExpectedSchemaVersion)
				if len(pending) == 0 {
					fmt.Fprintln(out, cli.FormatInfo(msg))
					return nil
				}
				fmt.Fprintln(out, cli.FormatWarning(msg+" (run 'ledger migrate')"))
				for _, m := range pending {
					fmt.Fprintf(out, "  %d  %s\n", m.Version, m.Description)
				}
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			if before == storage.ExpectedSchemaVersion {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Schema already at version %d", before)))
				return nil
			}
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated %s from version %d to %d", dbPath, before, storage.ExpectedSchemaVersion)))
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "Only report the schema version")
	return cmd
}
