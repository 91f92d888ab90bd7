package report

import (
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func testConverter() *Converter {
	return NewConverter("usd", map[string]decimal.Decimal{
		"eur": dec("1.10"),
		"GBP": dec("1.25"),
	})
}

func TestConverter_Convert(t *testing.T) {
	conv := testConverter()

	tests := []struct {
		name     string
		amount   string
		from, to string
		want     string
	}{
		{name: "same currency", amount: "10", from: "EUR", to: "eur", want: "10"},
		{name: "to base", amount: "10", from: "EUR", to: "USD", want: "11"},
		{name: "from base", amount: "11", from: "USD", to: "EUR", want: "10"},
		{name: "cross rate", amount: "11", from: "EUR", to: "GBP", want: "9.68"},
		{name: "empty means base", amount: "5", from: "", to: "EUR", want: "4.5454545454545455"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(dec(tt.amount), tt.from, tt.to)
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}

	_, err := conv.Convert(dec("1"), "JPY", "USD")
	assert.ErrorIs(t, err, ErrUnknownRate)
	_, err = conv.Convert(dec("1"), "USD", "JPY")
	assert.ErrorIs(t, err, ErrUnknownRate)
}

func TestAccountStats(t *testing.T) {
	asOf := time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{Account: "Checking", Vendor: "Grocer", Amount: -50.25, Date: day(2024, 3, 1)},
		{Account: " checking ", Vendor: "Employer", Amount: 1000, Date: day(2024, 3, 15)},
		{Account: "Checking", Vendor: "Grocer", Amount: -20, Date: day(2024, 3, 16)},
		{Account: "Savings", Vendor: "Savings", Amount: 200, Date: day(2024, 3, 2)},
		{Account: "Savings", Amount: 5, Date: day(2024, 3, 3)},
	}

	stats := AccountStats(txns, asOf)

	assertDecimal(t, "949.75", stats.Balances["checking"])
	assert.Equal(t, 2, stats.Counts["checking"])
	assertDecimal(t, "205", stats.Balances["savings"])
	assert.Equal(t, 2, stats.Counts["savings"])

	assert.Equal(t, 2, stats.VendorCounts["Grocer"], "future rows still count toward vendors")
	assert.Equal(t, 1, stats.VendorCounts["Employer"])
	assert.NotContains(t, stats.VendorCounts, "Savings")
	assert.NotContains(t, stats.VendorCounts, "")

	assertDecimal(t, "1049.75", stats.Balance(model.Account{Name: "Checking", StartingBalance: 100}))
	assertDecimal(t, "0", stats.Balance(model.Account{Name: "Unknown"}))
}

func TestCurrencyTotals(t *testing.T) {
	txns := []model.Transaction{
		{Currency: "usd", Amount: -10.10},
		{Currency: "USD", Amount: 20.20},
		{Currency: "EUR", Amount: -5},
		{Currency: "USD", Amount: -0.10},
	}

	totals := CurrencyTotals(txns)
	require.Len(t, totals, 2)

	assert.Equal(t, "EUR", totals[0].Currency)
	assert.InDelta(t, 0, totals[0].Inflow, 0.0001)
	assert.InDelta(t, 5, totals[0].Outflow, 0.0001)
	assert.InDelta(t, -5, totals[0].Net, 0.0001)
	assert.Equal(t, 1, totals[0].Count)

	assert.Equal(t, "USD", totals[1].Currency)
	assert.InDelta(t, 20.20, totals[1].Inflow, 0.0001)
	assert.InDelta(t, 10.20, totals[1].Outflow, 0.0001)
	assert.InDelta(t, 10.00, totals[1].Net, 0.0001)
	assert.Equal(t, 3, totals[1].Count)

	assert.Empty(t, CurrencyTotals(nil))
}

func TestOccurrenceTotals(t *testing.T) {
	rent := &model.ScheduledTransaction{ID: "rent", Currency: "EUR", Amount: -900}
	occs := []model.Occurrence{
		{Original: rent, Date: day(2024, 1, 1), Amount: -900},
		{Original: rent, Date: day(2024, 2, 1), Amount: -900},
		{Date: day(2024, 3, 1), Amount: -1},
	}

	totals := OccurrenceTotals(occs)
	require.Len(t, totals, 1)
	assert.Equal(t, "EUR", totals[0].Currency)
	assert.InDelta(t, 1800, totals[0].Outflow, 0.0001)
	assert.Equal(t, 2, totals[0].Count)
}

func TestBudgetSpent(t *testing.T) {
	budget := model.Budget{
		Category: "Food",
		Target:   100,
		Currency: "USD",
		Start:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}

	txns := []model.Transaction{
		{Category: "food", Amount: -30, Currency: "USD", Date: day(2024, 3, 1)},
		{Category: " Food ", Amount: -10, Currency: "EUR", Date: day(2024, 3, 31)},
		{Category: "Food", Amount: 5, Currency: "USD", Date: day(2024, 3, 10)},
		{Category: "Food", Amount: -99, Currency: "USD", Date: day(2024, 4, 1)},
		{Category: "Food", Amount: -99, Currency: "USD", Date: day(2024, 2, 29)},
		{Category: "Rent", Amount: -500, Currency: "USD", Date: day(2024, 3, 5)},
		{Category: "Food", Amount: -7, Currency: "JPY", Date: day(2024, 3, 6)},
	}

	status := BudgetSpent(budget, txns, testConverter())
	// 30 + 11 - 5 + 7 (JPY at face value)
	assertDecimal(t, "43", status.Spent)
	assertDecimal(t, "57", status.Remaining)
	assert.InDelta(t, 43, status.Percent, 0.0001)
	assert.Equal(t, []string{"JPY"}, status.Unconverted)
}

func TestBudgetSpent_SubCategoryAndOpenEnd(t *testing.T) {
	budget := model.Budget{
		Category:    "Food",
		SubCategory: "Groceries",
		Start:       day(2024, 1, 1),
	}

	txns := []model.Transaction{
		{Category: "Food", SubCategory: "groceries", Amount: -40, Date: day(2025, 6, 1)},
		{Category: "Food", SubCategory: "Restaurants", Amount: -60, Date: day(2024, 6, 1)},
		{Category: "Food", Amount: -10, Date: day(2024, 6, 2)},
	}

	status := BudgetSpent(budget, txns, nil)
	assertDecimal(t, "40", status.Spent)
	assert.Zero(t, status.Percent)
	assert.Empty(t, status.Unconverted)
}

func TestSummarize(t *testing.T) {
	txns := []model.Transaction{
		{Category: "Salary", Amount: 2000, Currency: "USD"},
		{Category: "Food", Amount: -50, Currency: "USD"},
		{Category: "Food", Amount: -10, Currency: "EUR"},
		{Amount: -5, Currency: "USD"},
		{Category: "Transfer", Amount: -300, Currency: "USD", TransferID: "tr-1"},
		{Category: "Transfer", Amount: 300, Currency: "USD", TransferID: "tr-1"},
	}

	summary := Summarize(txns, testConverter())

	assert.Equal(t, "USD", summary.Base)
	assertDecimal(t, "2000", summary.Income)
	assertDecimal(t, "66", summary.Expenses)
	assertDecimal(t, "1934", summary.Net)
	assert.Equal(t, 2, summary.Transfers)
	assert.Empty(t, summary.Unconverted)

	require.Len(t, summary.Categories, 3)
	assert.Equal(t, "Food", summary.Categories[0].Category)
	assertDecimal(t, "-61", summary.Categories[0].Amount)
	assert.Equal(t, 2, summary.Categories[0].Count)
	assert.Equal(t, "Uncategorized", summary.Categories[1].Category)
	assert.Equal(t, "Salary", summary.Categories[2].Category)
}
