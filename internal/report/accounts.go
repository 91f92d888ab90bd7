package report

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// AccountSummary holds per-account balances and usage counts.
// Balances and Counts are keyed by the trimmed lowercase account name;
// VendorCounts by the raw vendor.
type AccountSummary struct {
	Balances     map[string]decimal.Decimal
	Counts       map[string]int
	VendorCounts map[string]int
}

// AccountStats sums each account's transactions dated on or before asOf's
// calendar day. Vendors are counted across every date, skipping rows whose
// vendor is the account itself.
func AccountStats(transactions []model.Transaction, asOf time.Time) AccountSummary {
	cutoff := asOf.Format("2006-01-02")
	summary := AccountSummary{
		Balances:     make(map[string]decimal.Decimal),
		Counts:       make(map[string]int),
		VendorCounts: make(map[string]int),
	}

	for _, t := range transactions {
		account := AccountKey(t.Account)

		if t.Date.Format("2006-01-02") <= cutoff {
			summary.Balances[account] = summary.Balances[account].Add(decimal.NewFromFloat(t.Amount))
			summary.Counts[account]++
		}

		if t.Vendor != "" && t.Vendor != t.Account {
			summary.VendorCounts[t.Vendor]++
		}
	}
	return summary
}

// AccountKey normalises an account name for lookups in AccountSummary.
func AccountKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Balance returns an account's starting balance plus its recorded movements.
func (s AccountSummary) Balance(account model.Account) decimal.Decimal {
	return decimal.NewFromFloat(account.StartingBalance).Add(s.Balances[AccountKey(account.Name)])
}
