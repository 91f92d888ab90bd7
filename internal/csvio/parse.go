// Package csvio reads bank CSV exports into transactions and writes
// transactions back out as spreadsheet-safe CSV.
package csvio

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDate is returned when no known layout matches a date field.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidAmount is returned when an amount field is not a number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// AutoDateFormat lets ParseDate guess the layout.
const AutoDateFormat = "auto"

// Go's single-digit day and month verbs also accept zero-padded input, so
// one layout per separator covers every padding combination.
var (
	dayFirstLayouts   = []string{"2/1/2006", "2-1-2006", "2.1.2006"}
	monthFirstLayouts = []string{"1/2/2006", "1-2-2006", "1.2.2006"}
	yearFirstLayouts  = []string{"2006-1-2", "2006/1/2", "2006.1.2"}
	isoLayouts        = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}
	autoLayouts       = []string{"2006/1/2", "2/1/2006", "1/2/2006", "2-1-2006", "2.1.2006"}
)

var layoutTokens = strings.NewReplacer(
	"yyyy", "2006", "YYYY", "2006",
	"yy", "06", "YY", "06",
	"MM", "01", "M", "1",
	"dd", "02", "DD", "02", "d", "2", "D", "2",
)

// GoLayout converts a pattern written with d/M/y tokens (for example
// "dd/MM/yyyy") into a Go time layout. Patterns that already contain the
// Go reference year are returned unchanged.
func GoLayout(pattern string) string {
	if strings.Contains(pattern, "2006") {
		return pattern
	}
	return layoutTokens.Replace(pattern)
}

// ParseDate parses s using format and returns the day at noon in UTC, which
// keeps the calendar date stable in every timezone.
//
// An explicit format is tried first; when it fails, the other layouts of the
// same family (day, month or year first, judged by the pattern's first
// token) are tried. An empty or "auto" format tries ISO forms, then the
// common numeric layouts.
func ParseDate(s, format string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	var candidates []string
	if format == "" || strings.EqualFold(format, AutoDateFormat) {
		candidates = append(append(candidates, isoLayouts...), autoLayouts...)
	} else {
		candidates = append(candidates, GoLayout(format))
		candidates = append(candidates, familyLayouts(format)...)
	}

	for _, layout := range candidates {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if y := parsed.Year(); y <= 1900 || y >= 2100 {
			continue
		}
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 12, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q does not match format %q", ErrInvalidDate, s, format)
}

func familyLayouts(format string) []string {
	layout := GoLayout(format)
	switch {
	case strings.HasPrefix(layout, "2006"):
		return yearFirstLayouts
	case strings.HasPrefix(layout, "01"), strings.HasPrefix(layout, "1"):
		return monthFirstLayouts
	case strings.HasPrefix(layout, "02"), strings.HasPrefix(layout, "2"):
		return dayFirstLayouts
	}
	return nil
}

var amountJunk = regexp.MustCompile(`[^0-9.,\-]`)

// ParseAmount parses a human-formatted amount such as "$1,234.56",
// "1.234,56 €" or "(12.50)". decimalSep is '.', ',' or 0 to detect the
// separator from the last one present. Parentheses mean a negative amount.
func ParseAmount(s string, decimalSep rune) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	negative := strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")")

	clean := amountJunk.ReplaceAllString(raw, "")
	if clean == "" || clean == "-" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	switch decimalSep {
	case ',':
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case '.':
		clean = strings.ReplaceAll(clean, ",", "")
	default:
		clean = normaliseSeparators(clean)
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

func normaliseSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0 && dot > comma:
		return strings.ReplaceAll(s, ",", "")
	case dot >= 0 && comma >= 0:
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case comma >= 0 && strings.Count(s, ",") > 1:
		// 1,234,567 has only thousands separators.
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}
