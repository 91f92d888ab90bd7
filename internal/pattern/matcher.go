// Package pattern categorises transactions with user-defined vendor rules.
package pattern

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Rule is an alias to the model.PatternRule type for convenience.
type Rule = model.PatternRule

// amountEpsilon absorbs float noise in "eq" comparisons.
const amountEpsilon = 0.005

// Matcher evaluates transactions against pattern rules.
type Matcher struct {
	compiled map[int]*regexp.Regexp
	rules    []Rule
}

// NewMatcher creates a matcher. Regex rules that do not compile never match;
// run Validate first to report them.
func NewMatcher(rules []Rule) *Matcher {
	m := &Matcher{
		rules:    rules,
		compiled: make(map[int]*regexp.Regexp),
	}

	for i, rule := range rules {
		if rule.IsRegex && rule.VendorPattern != "" {
			if re, err := regexp.Compile("(?i)" + rule.VendorPattern); err == nil {
				m.compiled[i] = re
			}
		}
	}

	return m
}

// Match returns every rule the transaction satisfies, highest priority
// first. Rules of equal priority keep their configured order.
func (m *Matcher) Match(txn model.Transaction) []Rule {
	var matches []Rule
	for i, rule := range m.rules {
		if m.matchesRule(i, txn) {
			matches = append(matches, rule)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Priority > matches[b].Priority
	})
	return matches
}

// Apply fills Category and SubCategory of uncategorised transactions from the
// best matching rule and returns how many it changed. Transactions that
// already carry a category and linked transfers are left alone.
func (m *Matcher) Apply(txns []model.Transaction) int {
	if len(m.rules) == 0 {
		return 0
	}

	changed := 0
	for i := range txns {
		txn := &txns[i]
		if txn.Category != "" || txn.IsTransfer() {
			continue
		}

		matches := m.Match(*txn)
		if len(matches) == 0 {
			continue
		}

		txn.Category = matches[0].Category
		txn.SubCategory = matches[0].SubCategory
		changed++
	}
	return changed
}

func (m *Matcher) matchesRule(i int, txn model.Transaction) bool {
	rule := m.rules[i]

	if rule.Account != "" && !strings.EqualFold(strings.TrimSpace(rule.Account), strings.TrimSpace(txn.Account)) {
		return false
	}

	switch rule.Direction {
	case model.DirectionIn:
		if txn.Amount <= 0 {
			return false
		}
	case model.DirectionOut:
		if txn.Amount >= 0 {
			return false
		}
	}

	return m.matchesVendor(i, txn) && matchesAmount(rule, math.Abs(txn.Amount))
}

// matchesVendor compares case-insensitively. A plain pattern must equal the
// trimmed vendor; a regex pattern may match anywhere in it.
func (m *Matcher) matchesVendor(i int, txn model.Transaction) bool {
	rule := m.rules[i]
	if rule.VendorPattern == "" {
		return true
	}

	vendor := strings.TrimSpace(txn.Vendor)
	if rule.IsRegex {
		re, ok := m.compiled[i]
		return ok && re.MatchString(vendor)
	}
	return strings.EqualFold(strings.TrimSpace(rule.VendorPattern), vendor)
}

func matchesAmount(rule Rule, amount float64) bool {
	value := func(cmp func(float64) bool) bool {
		return rule.AmountValue != nil && cmp(*rule.AmountValue)
	}

	switch rule.AmountCondition {
	case model.AmountAny, "":
		return true
	case model.AmountLessThan:
		return value(func(v float64) bool { return amount < v })
	case model.AmountLessEqual:
		return value(func(v float64) bool { return amount <= v })
	case model.AmountEqual:
		return value(func(v float64) bool { return math.Abs(amount-v) < amountEpsilon })
	case model.AmountGreaterEqual:
		return value(func(v float64) bool { return amount >= v })
	case model.AmountGreaterThan:
		return value(func(v float64) bool { return amount > v })
	case model.AmountRange:
		if rule.AmountMin != nil && amount < *rule.AmountMin {
			return false
		}
		if rule.AmountMax != nil && amount > *rule.AmountMax {
			return false
		}
		return true
	}

	return false
}
