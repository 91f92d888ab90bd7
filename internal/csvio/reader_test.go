package csvio

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_Read(t *testing.T) {
	input := "Date,Vendor,Amount,Account,Currency,Category\n" +
		"2024-03-15,Coffee Shop,-4.50,Checking,usd,Food\n" +
		"15/03/2024,Bad Amount,,Checking,USD,\n" +
		"not-a-date,Bad Date,1,Checking,,\n" +
		"2024-03-16,Salary,\"2,000.00\",,,Income\n"

	reader := NewReader()
	reader.Account = "Default"
	reader.Currency = "EUR"

	txns, rowErrs, err := reader.Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Len(t, rowErrs, 2)

	coffee := txns[0]
	assert.Equal(t, "Coffee Shop", coffee.Vendor)
	assert.Equal(t, "Checking", coffee.Account)
	assert.Equal(t, "USD", coffee.Currency)
	assert.Equal(t, "Food", coffee.Category)
	assert.InDelta(t, -4.5, coffee.Amount, 0.0001)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), coffee.Date)
	assert.Equal(t, coffee.GenerateHash(), coffee.Hash)
	_, err = uuid.Parse(coffee.ID)
	assert.NoError(t, err)

	salary := txns[1]
	assert.Equal(t, "Default", salary.Account)
	assert.Equal(t, "EUR", salary.Currency)
	assert.InDelta(t, 2000, salary.Amount, 0.0001)
	assert.NotEqual(t, coffee.ID, salary.ID)

	assert.Equal(t, 3, rowErrs[0].Line)
	assert.ErrorIs(t, &rowErrs[0], ErrInvalidAmount)
	assert.Equal(t, 4, rowErrs[1].Line)
	assert.ErrorIs(t, &rowErrs[1], ErrInvalidDate)
	assert.Contains(t, rowErrs[1].Error(), "line 4")
}

func TestReader_DebitCreditColumns(t *testing.T) {
	input := "Datum;Omschrijving;Af;Bij\n" +
		"05-03-2024;Albert Heijn;12,50;\n" +
		"06-03-2024;Salaris;;2.500,00\n"

	reader := &Reader{
		Mapping: ColumnMapping{
			Date:   "datum",
			Vendor: "Omschrijving",
			Debit:  "Af",
			Credit: "Bij",
		},
		DateFormat:       "dd-MM-yyyy",
		DecimalSeparator: ',',
		Comma:            ';',
		Account:          "Bank",
		Currency:         "eur",
	}

	txns, rowErrs, err := reader.Read(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, txns, 2)

	assert.InDelta(t, -12.5, txns[0].Amount, 0.0001)
	assert.Equal(t, "Albert Heijn", txns[0].Vendor)
	assert.Equal(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), txns[0].Date)
	assert.InDelta(t, 2500, txns[1].Amount, 0.0001)
	assert.Equal(t, "EUR", txns[1].Currency)
}

func TestReader_Errors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		_, _, err := NewReader().Read(context.Background(), strings.NewReader(""))
		assert.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("missing date column", func(t *testing.T) {
		_, _, err := NewReader().Read(context.Background(), strings.NewReader("When,Amount\n"))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("missing amount column", func(t *testing.T) {
		_, _, err := NewReader().Read(context.Background(), strings.NewReader("Date,Debit\n"))
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("row without account", func(t *testing.T) {
		_, rowErrs, err := NewReader().Read(context.Background(), strings.NewReader("Date,Amount\n2024-01-02,5\n"))
		require.NoError(t, err)
		require.Len(t, rowErrs, 1)
		assert.ErrorIs(t, &rowErrs[0], ErrMissingAccount)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := NewReader().Read(ctx, strings.NewReader("Date,Amount\n2024-01-02,5\n"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWriter_Write(t *testing.T) {
	txns := []model.Transaction{
		{
			ID:       "txn-1",
			Date:     time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
			Account:  "Checking",
			Vendor:   "=HYPERLINK(\"http://evil\")",
			Amount:   -4.5,
			Currency: "USD",
		},
		{
			ID:           "txn-2",
			Date:         time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC),
			Account:      "Savings",
			Vendor:       "Transfer",
			Amount:       100,
			Currency:     "USD",
			TransferID:   "tr-1",
			RecurrenceID: "sched-1",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Writer{}.Write(&buf, txns))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "2024-03-15", rows[1][1])
	assert.Equal(t, "'=HYPERLINK(\"http://evil\")", rows[1][3])
	assert.Equal(t, "-4.50", rows[1][6])
	assert.Equal(t, "100.00", rows[2][6])
	assert.Equal(t, "tr-1", rows[2][9])
	assert.Equal(t, "sched-1", rows[2][10])

	reader := NewReader()
	back, rowErrs, err := reader.Read(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, back, 2)
	assert.InDelta(t, -4.5, back[0].Amount, 0.0001)
	assert.Equal(t, txns[1].Date, back[1].Date)
}
