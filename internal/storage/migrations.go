package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build reads and writes.
// Migrate fails if the database ends anywhere else.
const ExpectedSchemaVersion = 3

// Migration is one schema step. Statements run in order inside a single
// transaction together with the user_version bump.
type Migration struct {
	Description string
	Statements  []string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ledger tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				hash TEXT UNIQUE NOT NULL,
				date DATETIME NOT NULL,
				amount REAL NOT NULL,
				currency TEXT NOT NULL DEFAULT '',
				vendor TEXT NOT NULL DEFAULT '',
				account TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				sub_category TEXT NOT NULL DEFAULT '',
				remarks TEXT NOT NULL DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX idx_transactions_date ON transactions(date)`,
			`CREATE INDEX idx_transactions_account ON transactions(account)`,
			`CREATE TABLE IF NOT EXISTS scheduled_transactions (
				id TEXT PRIMARY KEY,
				date DATETIME NOT NULL,
				frequency TEXT NOT NULL,
				end_date DATETIME,
				amount REAL NOT NULL,
				currency TEXT NOT NULL DEFAULT '',
				vendor TEXT NOT NULL DEFAULT '',
				account TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				sub_category TEXT NOT NULL DEFAULT '',
				remarks TEXT NOT NULL DEFAULT '',
				transfer_id TEXT NOT NULL DEFAULT '',
				ignored_dates TEXT NOT NULL DEFAULT '[]',
				last_processed DATETIME,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE TABLE IF NOT EXISTS accounts (
				name TEXT PRIMARY KEY,
				currency TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'Other',
				starting_balance REAL NOT NULL DEFAULT 0,
				remarks TEXT NOT NULL DEFAULT '',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version:     2,
		Description: "Transfer links",
		Statements: []string{
			`ALTER TABLE transactions ADD COLUMN transfer_id TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_transfer_id ON transactions(transfer_id) WHERE transfer_id != ''`,
		},
	},
	{
		Version:     3,
		Description: "Schedule origin of materialised transactions",
		Statements: []string{
			`ALTER TABLE transactions ADD COLUMN recurrence_id TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_recurrence_id ON transactions(recurrence_id) WHERE recurrence_id != ''`,
		},
	},
}

// Migrate applies every pending migration.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	pending, err := s.PendingMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		slog.Debug("Applied migration", "version", m.Version, "description", m.Description)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, version)
	}
	return nil
}

// PendingMigrations lists the migrations Migrate would apply, oldest first.
func (s *SQLiteStorage) PendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (s *SQLiteStorage) apply(ctx context.Context, m Migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.Statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}

// SchemaVersion reports the schema version currently stored in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
