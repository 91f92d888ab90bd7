// Package transfer detects transactions that look like the two legs of an
// internal transfer: same local calendar day, same absolute amount,
// opposite signs.
package transfer

import (
	"fmt"
	"math"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// Pair is one matched credit/debit couple.
type Pair struct {
	Credit model.Transaction
	Debit  model.Transaction
	Score  int
}

// Matcher groups transactions by the calendar day they are displayed on.
type Matcher struct {
	Location *time.Location
}

// NewMatcher returns a matcher that buckets dates in loc. A nil loc uses time.Local.
func NewMatcher(loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	return &Matcher{Location: loc}
}

// FindPairs returns the IDs of every transaction in a detected pair, using the local timezone.
func FindPairs(transactions []model.Transaction) map[string]struct{} {
	return NewMatcher(nil).FindPairs(transactions)
}

// FindPairs returns the IDs of every transaction participating in a pair.
func (m *Matcher) FindPairs(transactions []model.Transaction) map[string]struct{} {
	pairs := m.Match(transactions)
	ids := make(map[string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		ids[p.Credit.ID] = struct{}{}
		ids[p.Debit.ID] = struct{}{}
	}
	return ids
}

type bucket struct {
	candidates []model.Transaction
	zero       bool
}

// Match pairs credits with debits inside each (day, absolute amount) bucket.
// Each credit takes the unused debit with the highest similarity score; the
// first debit in input order wins ties. Currency is not compared.
func (m *Matcher) Match(transactions []model.Transaction) []Pair {
	loc := m.Location
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[string]*bucket)
	var order []string

	for _, t := range transactions {
		amountKey := fmt.Sprintf("%.2f", math.Abs(t.Amount))
		key := t.Date.In(loc).Format("2006-01-02") + "|" + amountKey

		b, ok := buckets[key]
		if !ok {
			b = &bucket{zero: amountKey == "0.00"}
			buckets[key] = b
			order = append(order, key)
		}
		b.candidates = append(b.candidates, t)
	}

	used := make(map[string]bool)
	var pairs []Pair

	for _, key := range order {
		b := buckets[key]
		if b.zero || len(b.candidates) < 2 {
			continue
		}

		var credits, debits []model.Transaction
		for _, t := range b.candidates {
			switch {
			case t.Amount > 0:
				credits = append(credits, t)
			case t.Amount < 0:
				debits = append(debits, t)
			}
		}

		for _, credit := range credits {
			if used[credit.ID] {
				continue
			}

			best := -1
			bestScore := -1
			for i, debit := range debits {
				if used[debit.ID] {
					continue
				}
				if s := score(credit, debit); s > bestScore {
					best, bestScore = i, s
				}
			}

			if best < 0 {
				continue
			}

			debit := debits[best]
			used[credit.ID] = true
			used[debit.ID] = true
			pairs = append(pairs, Pair{Credit: credit, Debit: debit, Score: bestScore})
		}
	}

	return pairs
}

// score counts the descriptive fields both legs share. Empty fields never count.
func score(a, b model.Transaction) int {
	s := 0
	for _, f := range [][2]string{
		{a.Category, b.Category},
		{a.SubCategory, b.SubCategory},
		{a.Vendor, b.Vendor},
		{a.Remarks, b.Remarks},
	} {
		if f[0] != "" && f[1] != "" && f[0] == f[1] {
			s++
		}
	}
	return s
}
