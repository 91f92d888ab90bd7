package csvio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
		want   time.Time
	}{
		{name: "iso auto", input: "2024-03-15", format: "auto", want: noon(2024, 3, 15)},
		{name: "iso timestamp keeps calendar day", input: "2024-03-15T08:30:00Z", format: "", want: noon(2024, 3, 15)},
		{name: "explicit day first", input: "15/03/2024", format: "dd/MM/yyyy", want: noon(2024, 3, 15)},
		{name: "day first fallback unpadded", input: "5/3/2024", format: "dd/MM/yyyy", want: noon(2024, 3, 5)},
		{name: "day first fallback other separator", input: "05.03.2024", format: "dd/MM/yyyy", want: noon(2024, 3, 5)},
		{name: "explicit month first", input: "03/15/2024", format: "MM/dd/yyyy", want: noon(2024, 3, 15)},
		{name: "month first fallback dashes", input: "3-15-2024", format: "MM/dd/yyyy", want: noon(2024, 3, 15)},
		{name: "year first fallback", input: "2024/3/5", format: "yyyy-MM-dd", want: noon(2024, 3, 5)},
		{name: "go layout accepted", input: "15/03/2024", format: "02/01/2006", want: noon(2024, 3, 15)},
		{name: "auto prefers day first", input: "04/03/2024", format: "auto", want: noon(2024, 3, 4)},
		{name: "auto falls back to month first", input: "03/15/2024", format: "auto", want: noon(2024, 3, 15)},
		{name: "auto dotted", input: "15.03.2024", format: "auto", want: noon(2024, 3, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
	}{
		{name: "empty", input: "   ", format: "auto"},
		{name: "garbage", input: "not a date", format: "auto"},
		{name: "year out of range", input: "1800-01-01", format: "auto"},
		{name: "wrong family", input: "2024-03-15", format: "dd/MM/yyyy"},
		{name: "unknown pattern family", input: "15/03/2024", format: "Jan 2, 2006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDate(tt.input, tt.format)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func TestGoLayout(t *testing.T) {
	assert.Equal(t, "02/01/2006", GoLayout("dd/MM/yyyy"))
	assert.Equal(t, "1-2-06", GoLayout("M-d-yy"))
	assert.Equal(t, "2006-01-02", GoLayout("2006-01-02"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		sep   rune
	}{
		{name: "us explicit", input: "1,234.56", sep: '.', want: "1234.56"},
		{name: "european explicit", input: "1.234,56", sep: ',', want: "1234.56"},
		{name: "currency symbol auto", input: "$1,234.56", want: "1234.56"},
		{name: "european auto", input: "1.234,56 €", want: "1234.56"},
		{name: "decimal comma auto", input: "12,50", want: "12.50"},
		{name: "thousands only auto", input: "1,234,567", want: "1234567"},
		{name: "negative", input: "-45.00", want: "-45"},
		{name: "parentheses negative", input: "(12.50)", want: "-12.5"},
		{name: "plain integer", input: "7", want: "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.sep)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-", "1.234.567"} {
		_, err := ParseAmount(input, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", input)
	}
}

func TestSanitizeField(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "=SUM(A1:A2)", want: "'=SUM(A1:A2)"},
		{input: "@cmd", want: "'@cmd"},
		{input: "+1+1", want: "'+1+1"},
		{input: "-abc", want: "'-abc"},
		{input: "\tTabbed", want: "'\tTabbed"},
		{input: "\rReturn", want: "'\rReturn"},
		{input: "-50", want: "-50"},
		{input: "+100", want: "+100"},
		{input: "-10.5", want: "-10.5"},
		{input: "Coffee Shop", want: "Coffee Shop"},
		{input: "", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeField(tt.input), "input %q", tt.input)
	}
}

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
