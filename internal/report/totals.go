package report

import (
	"sort"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

type currencyAccumulator struct {
	inflow  decimal.Decimal
	outflow decimal.Decimal
	count   int
}

// CurrencyTotals sums inflows and outflows per currency code, sorted by
// code. Outflow is reported as a positive magnitude.
func CurrencyTotals(transactions []model.Transaction) []service.CurrencyTotal {
	acc := make(map[string]*currencyAccumulator)
	for _, t := range transactions {
		code := strings.ToUpper(t.Currency)
		a, ok := acc[code]
		if !ok {
			a = &currencyAccumulator{}
			acc[code] = a
		}

		amount := decimal.NewFromFloat(t.Amount)
		if amount.IsNegative() {
			a.outflow = a.outflow.Sub(amount)
		} else {
			a.inflow = a.inflow.Add(amount)
		}
		a.count++
	}

	totals := make([]service.CurrencyTotal, 0, len(acc))
	for code, a := range acc {
		totals = append(totals, service.CurrencyTotal{
			Currency: code,
			Inflow:   a.inflow.InexactFloat64(),
			Outflow:  a.outflow.InexactFloat64(),
			Net:      a.inflow.Sub(a.outflow).InexactFloat64(),
			Count:    a.count,
		})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Currency < totals[j].Currency })
	return totals
}

// OccurrenceTotals is CurrencyTotals for projected occurrences, using the
// template currency.
func OccurrenceTotals(occurrences []model.Occurrence) []service.CurrencyTotal {
	txns := make([]model.Transaction, 0, len(occurrences))
	for _, occ := range occurrences {
		if occ.Original == nil {
			continue
		}
		txns = append(txns, model.Transaction{Currency: occ.Original.Currency, Amount: occ.Amount})
	}
	return CurrencyTotals(txns)
}
