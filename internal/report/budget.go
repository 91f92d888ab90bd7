package report

import (
	"sort"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// BudgetStatus is a budget's consumption over its window.
type BudgetStatus struct {
	Budget    model.Budget
	Spent     decimal.Decimal
	Remaining decimal.Decimal
	// Percent is Spent as a share of Target; zero when Target is zero.
	Percent float64
	// Unconverted lists currencies counted at face value for lack of a rate.
	Unconverted []string
}

// BudgetSpent measures spending against a budget. A transaction counts when
// its calendar day lies within [Start, End] (End zero means open-ended), its
// category matches and, if the budget names one, its sub-category matches.
// Matching ignores case and surrounding space. Amounts are converted to the
// budget currency; spent is the negated sum, so refunds reduce it and net
// income makes it negative.
func BudgetSpent(budget model.Budget, transactions []model.Transaction, conv *Converter) BudgetStatus {
	target := budget.Currency
	if target == "" && conv != nil {
		target = conv.Base
	}

	start := model.StartOfDay(budget.Start)
	missing := make(map[string]struct{})
	spent := decimal.Zero

	for _, t := range transactions {
		day := model.StartOfDay(t.Date)
		if !budget.Start.IsZero() && day.Before(start) {
			continue
		}
		if !budget.End.IsZero() && day.After(model.StartOfDay(budget.End)) {
			continue
		}
		if !sameLabel(t.Category, budget.Category) {
			continue
		}
		if budget.SubCategory != "" && !sameLabel(t.SubCategory, budget.SubCategory) {
			continue
		}
		spent = spent.Sub(conv.converted(t.Amount, t.Currency, target, missing))
	}

	targetAmount := decimal.NewFromFloat(budget.Target)
	status := BudgetStatus{
		Budget:      budget,
		Spent:       spent,
		Remaining:   targetAmount.Sub(spent),
		Unconverted: sortedKeys(missing),
	}
	if targetAmount.IsPositive() {
		status.Percent = spent.Div(targetAmount).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return status
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
