package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveTransactions_SkipsDuplicateHashes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions(3)

	inserted, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Same content under new IDs collides on hash.
	again := createTestTransactions(3)
	for i := range again {
		again[i].ID += "-reimport"
	}
	inserted, err = store.SaveTransactions(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	all, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveTransactions_GeneratesMissingHash(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := model.Transaction{
		ID:      "no-hash",
		Date:    day(2024, time.May, 5),
		Vendor:  "Bakery",
		Account: "Checking",
		Amount:  -4.5,
	}

	_, err := store.SaveTransactions(ctx, []model.Transaction{txn})
	require.NoError(t, err)

	got, err := store.GetTransactionByID(ctx, "no-hash")
	require.NoError(t, err)
	assert.Equal(t, txn.GenerateHash(), got.Hash)
	assert.Equal(t, "Bakery", got.Vendor)
	assert.InDelta(t, -4.5, got.Amount, 0.0001)
	assert.True(t, txn.Date.Equal(got.Date))
}

func TestSaveTransactions_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		wantErr error
		name    string
		txns    []model.Transaction
	}{
		{name: "nil slice", txns: nil, wantErr: ErrNilParameter},
		{name: "empty slice", txns: []model.Transaction{}, wantErr: ErrEmptySlice},
		{
			name:    "missing id",
			txns:    []model.Transaction{{Date: day(2024, 1, 1), Account: "A"}},
			wantErr: ErrInvalidTransaction,
		},
		{
			name:    "missing date",
			txns:    []model.Transaction{{ID: "x", Account: "A"}},
			wantErr: ErrInvalidTransaction,
		},
		{
			name:    "missing account",
			txns:    []model.Transaction{{ID: "x", Date: day(2024, 1, 1)}},
			wantErr: ErrInvalidTransaction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.SaveTransactions(ctx, tt.txns)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetTransactions_Filter(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := createTestTransactions(5) // March 1..5
	txns[4].Account = "Savings"
	txns[4].Hash = txns[4].GenerateHash()
	_, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)

	start := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filter  service.TransactionFilter
		wantIDs []string
	}{
		{name: "all", filter: service.TransactionFilter{}, wantIDs: []string{"txn-a", "txn-b", "txn-c", "txn-d", "txn-e"}},
		{name: "range is end exclusive", filter: service.TransactionFilter{StartDate: &start, EndDate: &end}, wantIDs: []string{"txn-b", "txn-c"}},
		{name: "account", filter: service.TransactionFilter{Account: "Savings"}, wantIDs: []string{"txn-e"}},
		{name: "limit and offset", filter: service.TransactionFilter{Limit: 2, Offset: 1}, wantIDs: []string{"txn-b", "txn-c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetTransactions(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]string, len(got))
			for i, txn := range got {
				ids[i] = txn.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err = store.GetTransactions(ctx, service.TransactionFilter{StartDate: &end, EndDate: &start})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestDeleteTransaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.SaveTransactions(ctx, createTestTransactions(1))
	require.NoError(t, err)

	require.NoError(t, store.DeleteTransaction(ctx, "txn-a"))

	_, err = store.GetTransactionByID(ctx, "txn-a")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.DeleteTransaction(ctx, "txn-a"), common.ErrNotFound)
}

func TestLinkTransfer(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txns := []model.Transaction{
		{ID: "credit", Date: day(2024, 6, 1), Account: "Savings", Amount: 250},
		{ID: "debit", Date: day(2024, 6, 1), Account: "Checking", Amount: -250},
		{ID: "other", Date: day(2024, 6, 2), Account: "Checking", Amount: -10},
	}
	_, err := store.SaveTransactions(ctx, txns)
	require.NoError(t, err)

	require.NoError(t, store.LinkTransfer(ctx, "credit", "debit", "xfer-1"))

	credit, err := store.GetTransactionByID(ctx, "credit")
	require.NoError(t, err)
	assert.Equal(t, "xfer-1", credit.TransferID)
	assert.True(t, credit.IsTransfer())

	t.Run("already linked leg is rejected", func(t *testing.T) {
		err := store.LinkTransfer(ctx, "other", "debit", "xfer-2")
		assert.ErrorIs(t, err, ErrAlreadyLinked)

		// The failed link must not leave "other" half-linked.
		other, err := store.GetTransactionByID(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, other.TransferID)
	})

	t.Run("unknown leg", func(t *testing.T) {
		err := store.LinkTransfer(ctx, "other", "missing", "xfer-3")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("same transaction twice", func(t *testing.T) {
		err := store.LinkTransfer(ctx, "other", "other", "xfer-4")
		assert.ErrorIs(t, err, ErrInvalidTransfer)
	})

	t.Run("unlink", func(t *testing.T) {
		require.NoError(t, store.UnlinkTransfer(ctx, "xfer-1"))

		debit, err := store.GetTransactionByID(ctx, "debit")
		require.NoError(t, err)
		assert.Empty(t, debit.TransferID)

		assert.ErrorIs(t, store.UnlinkTransfer(ctx, "xfer-1"), common.ErrNotFound)
	})
}
