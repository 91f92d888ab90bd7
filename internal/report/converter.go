// Package report aggregates ledger transactions into balances, currency
// totals, budget consumption and income/expense summaries. Money is summed
// with shopspring/decimal so totals do not drift.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownRate is returned when a currency has no configured rate.
var ErrUnknownRate = errors.New("no exchange rate")

// Converter converts between currencies through a base currency.
// Rates[CODE] is the value of one unit of CODE expressed in Base.
type Converter struct {
	Rates map[string]decimal.Decimal
	Base  string
}

// NewConverter builds a Converter. Currency codes are matched case-insensitively.
func NewConverter(base string, rates map[string]decimal.Decimal) *Converter {
	normalised := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalised[strings.ToUpper(code)] = rate
	}
	return &Converter{Base: strings.ToUpper(base), Rates: normalised}
}

func (c *Converter) rate(code string) (decimal.Decimal, bool) {
	code = strings.ToUpper(code)
	if code == "" || code == c.Base {
		return decimal.NewFromInt(1), true
	}
	rate, ok := c.Rates[code]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// Convert expresses amount, held in from, in to. An empty code means Base.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}

	fromRate, ok := c.rate(from)
	if !ok {
		return amount, fmt.Errorf("%w: %s", ErrUnknownRate, from)
	}
	toRate, ok := c.rate(to)
	if !ok {
		return amount, fmt.Errorf("%w: %s", ErrUnknownRate, to)
	}
	return amount.Mul(fromRate).Div(toRate), nil
}

// converted is Convert for aggregations: an amount without a usable rate is
// kept at face value and its currency recorded in missing.
func (c *Converter) converted(amount float64, from, to string, missing map[string]struct{}) decimal.Decimal {
	value := decimal.NewFromFloat(amount)
	if c == nil {
		return value
	}
	out, err := c.Convert(value, from, to)
	if err != nil {
		missing[strings.ToUpper(from)] = struct{}{}
	}
	return out
}
