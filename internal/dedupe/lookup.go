// Package dedupe filters projected transactions that have already been recorded.
//
// Real transactions are indexed once by (calendar date, normalised vendor);
// each projected transaction is then checked against the amounts in its
// bucket. The date is taken from the value as stored, without converting it
// to another timezone. The transfer matcher deliberately uses the local
// display date instead; the two must not be unified.
package dedupe

import (
	"math"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// AmountTolerance is the largest absolute difference (exclusive) at which two
// amounts are considered the same.
const AmountTolerance = 0.01

// Lookup maps a composite date|vendor key to the amounts of real transactions sharing it.
type Lookup map[string][]float64

// Key returns the grouping key for a transaction: YYYY-MM-DD in the
// transaction's own location, a pipe, and the trimmed lowercase vendor.
func Key(t model.Transaction) string {
	return t.Date.Format("2006-01-02") + "|" + strings.ToLower(strings.TrimSpace(t.Vendor))
}

// BuildLookup indexes real transactions by Key.
func BuildLookup(real []model.Transaction) Lookup {
	lookup := make(Lookup, len(real))
	for i := range real {
		key := Key(real[i])
		lookup[key] = append(lookup[key], real[i].Amount)
	}
	return lookup
}

// Contains reports whether a transaction with the same key and an amount
// within AmountTolerance exists in the lookup.
func (l Lookup) Contains(t model.Transaction) bool {
	amounts, ok := l[Key(t)]
	if !ok {
		return false
	}
	for _, amount := range amounts {
		if math.Abs(amount-t.Amount) < AmountTolerance {
			return true
		}
	}
	return false
}

// Deduplicate returns the projected transactions that have no recorded
// counterpart in lookup. Order is preserved and the input is not modified.
func Deduplicate(projected []model.Transaction, lookup Lookup) []model.Transaction {
	kept := make([]model.Transaction, 0, len(projected))
	for _, p := range projected {
		if lookup.Contains(p) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// Filter is Deduplicate against a lookup built from real.
func Filter(real, projected []model.Transaction) []model.Transaction {
	return Deduplicate(projected, BuildLookup(real))
}
