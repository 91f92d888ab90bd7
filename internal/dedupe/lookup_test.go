package dedupe

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-ledger/internal/model"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		want string
		txn  model.Transaction
	}{
		{
			name: "normalises vendor",
			txn:  model.Transaction{Date: mustParse(t, "2024-01-05T10:00:00Z"), Vendor: "  Coffee Shop "},
			want: "2024-01-05|coffee shop",
		},
		{
			name: "keeps the stored offset",
			txn:  model.Transaction{Date: mustParse(t, "2024-01-05T23:30:00-05:00"), Vendor: "Grocer"},
			want: "2024-01-05|grocer",
		},
		{
			name: "missing vendor",
			txn:  model.Transaction{Date: mustParse(t, "2024-01-05T00:00:00Z")},
			want: "2024-01-05|",
		},
		{
			name: "zero date",
			txn:  model.Transaction{Vendor: "X"},
			want: "0001-01-01|x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.txn))
		})
	}
}

func TestBuildLookup(t *testing.T) {
	real := []model.Transaction{
		{Date: mustParse(t, "2024-01-05T00:00:00Z"), Vendor: "Coffee Shop", Amount: -4.50},
		{Date: mustParse(t, "2024-01-05T08:00:00Z"), Vendor: "COFFEE SHOP", Amount: -3.00},
		{Date: mustParse(t, "2024-01-06T00:00:00Z"), Vendor: "Coffee Shop", Amount: -4.50},
	}

	lookup := BuildLookup(real)

	require.Len(t, lookup, 2)
	assert.Equal(t, []float64{-4.50, -3.00}, lookup["2024-01-05|coffee shop"])
	assert.Equal(t, []float64{-4.50}, lookup["2024-01-06|coffee shop"])
}

func TestDeduplicate(t *testing.T) {
	real := []model.Transaction{
		{ID: "r1", Date: mustParse(t, "2024-01-05T00:00:00Z"), Vendor: "Coffee Shop", Amount: -4.50},
	}

	tests := []struct {
		name      string
		projected []model.Transaction
		wantIDs   []string
	}{
		{
			name: "exact match is dropped",
			projected: []model.Transaction{
				{ID: "p1", Date: mustParse(t, "2024-01-05T10:00:00Z"), Vendor: "coffee shop", Amount: -4.50},
			},
			wantIDs: []string{},
		},
		{
			name: "amount outside tolerance is kept",
			projected: []model.Transaction{
				{ID: "p1", Date: mustParse(t, "2024-01-05T10:00:00Z"), Vendor: "coffee shop", Amount: -4.52},
			},
			wantIDs: []string{"p1"},
		},
		{
			name: "amount inside tolerance is dropped",
			projected: []model.Transaction{
				{ID: "p1", Date: mustParse(t, "2024-01-05T10:00:00Z"), Vendor: "Coffee Shop", Amount: -4.505},
			},
			wantIDs: []string{},
		},
		{
			name: "different day is kept",
			projected: []model.Transaction{
				{ID: "p1", Date: mustParse(t, "2024-01-06T00:00:00Z"), Vendor: "Coffee Shop", Amount: -4.50},
			},
			wantIDs: []string{"p1"},
		},
		{
			name: "different vendor is kept",
			projected: []model.Transaction{
				{ID: "p1", Date: mustParse(t, "2024-01-05T00:00:00Z"), Vendor: "Tea House", Amount: -4.50},
			},
			wantIDs: []string{"p1"},
		},
		{
			name: "order is preserved",
			projected: []model.Transaction{
				{ID: "p3", Date: mustParse(t, "2024-02-01T00:00:00Z"), Vendor: "Rent", Amount: -1200},
				{ID: "p1", Date: mustParse(t, "2024-01-05T00:00:00Z"), Vendor: "Coffee Shop", Amount: -4.50},
				{ID: "p2", Date: mustParse(t, "2024-01-15T00:00:00Z"), Vendor: "Gym", Amount: -30},
			},
			wantIDs: []string{"p3", "p2"},
		},
		{
			name:      "empty input",
			projected: nil,
			wantIDs:   []string{},
		},
	}

	lookup := BuildLookup(real)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deduplicate(tt.projected, lookup)
			ids := make([]string, 0, len(got))
			for _, txn := range got {
				ids = append(ids, txn.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDeduplicate_VendorlessTransactionsShareKey(t *testing.T) {
	real := []model.Transaction{{Date: mustParse(t, "2024-01-05T00:00:00Z"), Amount: 100}}
	projected := []model.Transaction{
		{ID: "p1", Date: mustParse(t, "2024-01-05T00:00:00Z"), Vendor: "   ", Amount: 100},
	}

	assert.Empty(t, Filter(real, projected))
}

func TestDeduplicate_Properties(t *testing.T) {
	real := generate(500, "r")
	projected := generate(200, "p")
	for i := range projected {
		if i%3 == 0 {
			projected[i].Amount += 0.5
		}
	}
	original := append([]model.Transaction(nil), projected...)

	lookup := BuildLookup(real)
	first := Deduplicate(projected, lookup)

	t.Run("input is not modified", func(t *testing.T) {
		assert.Equal(t, original, projected)
	})

	t.Run("output is an ordered subsequence", func(t *testing.T) {
		j := 0
		for _, txn := range first {
			for j < len(projected) && projected[j].ID != txn.ID {
				j++
			}
			require.Less(t, j, len(projected), "%s not found in order", txn.ID)
			j++
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, first, Deduplicate(first, lookup))
	})

	t.Run("agrees with pairwise scan", func(t *testing.T) {
		assert.Equal(t, first, pairwise(real, projected))
	})
}

func generate(n int, prefix string) []model.Transaction {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txns = append(txns, model.Transaction{
			ID:     fmt.Sprintf("%s_%d", prefix, i),
			Date:   start.AddDate(0, 0, i%90),
			Vendor: fmt.Sprintf("Vendor %d", i%20),
			Amount: float64(i%100) + 10,
		})
	}
	return txns
}

func pairwise(real, projected []model.Transaction) []model.Transaction {
	kept := []model.Transaction{}
	for _, p := range projected {
		match := false
		for _, r := range real {
			if r.Date.Format("2006-01-02") == p.Date.Format("2006-01-02") &&
				strings.EqualFold(strings.TrimSpace(r.Vendor), strings.TrimSpace(p.Vendor)) &&
				math.Abs(r.Amount-p.Amount) < AmountTolerance {
				match = true
				break
			}
		}
		if !match {
			kept = append(kept, p)
		}
	}
	return kept
}
