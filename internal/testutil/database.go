// Package testutil provides test utilities for the ledger: an in-memory
// database that cleans itself up, and a fluent builder for seeding accounts,
// transactions and schedules.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/stretchr/testify/require"
)

// TestDB is a migrated in-memory ledger bound to one test.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB opens a fresh in-memory database, migrates it and seeds
// fixtures. The database is closed when the test finishes.
//
//	db := testutil.SetupTestDB(t, testutil.NewLedger().
//		WithAccount("Checking", "USD").
//		WithSpend("Checking", "Coffee", day, 4.25).
//		Fixtures())
func SetupTestDB(t *testing.T, fixtures Fixtures) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx), "migrate test database")
	require.NoError(t, fixtures.Seed(ctx, store), "seed fixtures")

	return &TestDB{Storage: store, t: t}
}

// Transactions returns every stored transaction, failing the test on error.
func (db *TestDB) Transactions() []model.Transaction {
	db.t.Helper()
	txns, err := db.Storage.GetTransactions(context.Background(), service.TransactionFilter{})
	require.NoError(db.t, err)
	return txns
}

// Schedules returns every stored schedule, failing the test on error.
func (db *TestDB) Schedules() []model.ScheduledTransaction {
	db.t.Helper()
	schedules, err := db.Storage.GetScheduledTransactions(context.Background())
	require.NoError(db.t, err)
	return schedules
}

// WithTransaction runs fn inside a database transaction that is always
// rolled back afterwards.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
