package main

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/Veraticus/spice-ledger/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLinkTransfers(t *testing.T) {
	noon := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	db := testutil.SetupTestDB(t, testutil.NewLedger().
		WithTransaction(model.Transaction{ID: "out", Date: noon, Account: "Checking", Vendor: "Transfer to savings", Currency: "USD", Amount: -500}).
		WithTransaction(model.Transaction{ID: "in", Date: noon.Add(2 * time.Hour), Account: "Savings", Vendor: "Transfer from checking", Currency: "USD", Amount: 500}).
		WithTransaction(model.Transaction{ID: "coffee", Date: noon, Account: "Checking", Vendor: "Cafe", Currency: "USD", Amount: -4.5}).
		WithTransaction(model.Transaction{ID: "late", Date: noon.AddDate(0, 0, 1), Account: "Savings", Vendor: "Interest", Currency: "USD", Amount: 500}).
		Fixtures())
	ctx := context.Background()

	r := service.DateRange{Start: utcDay(2024, 2, 1), End: utcDay(2024, 4, 1)}
	matcher := transfer.NewMatcher(time.UTC)

	pairs, err := findTransfers(ctx, db.Storage, r, matcher)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "in", pairs[0].Credit.ID)
	assert.Equal(t, "out", pairs[0].Debit.ID)
	assert.Contains(t, renderPairs(pairs), "Checking → Savings")

	require.NoError(t, linkTransfers(ctx, db.Storage, pairs))

	in, err := db.Storage.GetTransactionByID(ctx, "in")
	require.NoError(t, err)
	out, err := db.Storage.GetTransactionByID(ctx, "out")
	require.NoError(t, err)
	assert.NotEmpty(t, in.TransferID)
	assert.Equal(t, in.TransferID, out.TransferID)

	pairs, err = findTransfers(ctx, db.Storage, r, matcher)
	require.NoError(t, err)
	assert.Empty(t, pairs, "linked transactions are not matched again")

	require.NoError(t, db.Storage.UnlinkTransfer(ctx, in.TransferID))
	pairs, err = findTransfers(ctx, db.Storage, r, matcher)
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}

func TestFindTransfers_RespectsTimezone(t *testing.T) {
	// 23:30 and 00:30 UTC fall on the same day in New York.
	db := testutil.SetupTestDB(t, testutil.NewLedger().
		WithTransaction(model.Transaction{ID: "out", Date: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC), Account: "Checking", Amount: -75}).
		WithTransaction(model.Transaction{ID: "in", Date: time.Date(2024, 3, 2, 0, 30, 0, 0, time.UTC), Account: "Savings", Amount: 75}).
		Fixtures())
	ctx := context.Background()
	r := service.DateRange{Start: utcDay(2024, 2, 1), End: utcDay(2024, 4, 1)}

	pairs, err := findTransfers(ctx, db.Storage, r, transfer.NewMatcher(time.UTC))
	require.NoError(t, err)
	assert.Empty(t, pairs)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	pairs, err = findTransfers(ctx, db.Storage, r, transfer.NewMatcher(ny))
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
}
