package schedule

import (
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// DefaultCurrency is used when neither the schedule nor its account declares one.
const DefaultCurrency = "USD"

// ScheduledRemarkPrefix marks remarks of transactions created from a schedule.
const ScheduledRemarkPrefix = "(Scheduled) "

// Materialize turns occurrences into concrete transactions. currencyFor is
// consulted for schedules without a currency and may be nil.
func Materialize(occurrences []model.Occurrence, currencyFor func(account string) string) []model.Transaction {
	txns := make([]model.Transaction, 0, len(occurrences))
	for _, occ := range occurrences {
		st := occ.Original
		if st == nil {
			continue
		}

		currency := st.Currency
		if currency == "" && currencyFor != nil {
			currency = currencyFor(st.Account)
		}
		if currency == "" {
			currency = DefaultCurrency
		}

		txn := model.Transaction{
			ID:           st.ID + "-" + occ.Date.UTC().Format(time.RFC3339),
			Date:         occ.Date,
			Amount:       occ.Amount,
			Currency:     currency,
			Vendor:       st.Vendor,
			Account:      st.Account,
			Category:     st.Category,
			SubCategory:  st.SubCategory,
			Remarks:      strings.TrimSpace(ScheduledRemarkPrefix + st.Remarks),
			RecurrenceID: st.ID,
		}
		txn.Hash = txn.GenerateHash()
		txns = append(txns, txn)
	}
	return txns
}
