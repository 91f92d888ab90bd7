package report

import (
	"sort"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// CategoryTotal is the net amount booked to one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
	Count    int
}

// Summary is an income/expense overview in the base currency.
type Summary struct {
	Base        string
	Income      decimal.Decimal
	Expenses    decimal.Decimal // positive magnitude
	Net         decimal.Decimal
	Categories  []CategoryTotal
	Unconverted []string
	Transfers   int
}

// Summarize converts every transaction to the base currency and totals
// income, expenses and per-category amounts. Linked transfers move money
// between the user's own accounts and are only counted.
// Categories are ordered by amount, largest outflow first.
func Summarize(transactions []model.Transaction, conv *Converter) Summary {
	var base string
	if conv != nil {
		base = conv.Base
	}

	summary := Summary{Base: base}
	missing := make(map[string]struct{})
	byCategory := make(map[string]*CategoryTotal)

	for _, t := range transactions {
		if t.IsTransfer() {
			summary.Transfers++
			continue
		}

		amount := conv.converted(t.Amount, t.Currency, base, missing)
		if amount.IsNegative() {
			summary.Expenses = summary.Expenses.Sub(amount)
		} else {
			summary.Income = summary.Income.Add(amount)
		}

		name := t.Category
		if name == "" {
			name = "Uncategorized"
		}
		ct, ok := byCategory[name]
		if !ok {
			ct = &CategoryTotal{Category: name}
			byCategory[name] = ct
		}
		ct.Amount = ct.Amount.Add(amount)
		ct.Count++
	}

	summary.Net = summary.Income.Sub(summary.Expenses)
	summary.Unconverted = sortedKeys(missing)

	summary.Categories = make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		summary.Categories = append(summary.Categories, *ct)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if cmp := a.Amount.Cmp(b.Amount); cmp != 0 {
			return cmp < 0
		}
		return a.Category < b.Category
	})
	return summary
}
