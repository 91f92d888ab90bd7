package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Header is the column order written by Writer.
var Header = []string{
	"ID", "Date", "Account", "Vendor", "Category", "Sub Category",
	"Amount", "Currency", "Remarks", "Transfer ID", "Recurrence ID",
}

var (
	formulaStart = regexp.MustCompile(`^[=+@\t\r-]`)
	plainNumber  = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// SanitizeField neutralises spreadsheet formula injection by prefixing a
// single quote to fields that start with = + - @ tab or carriage return.
// Plain signed numbers are left alone so they stay numeric.
func SanitizeField(field string) string {
	if formulaStart.MatchString(field) && !plainNumber.MatchString(field) {
		return "'" + field
	}
	return field
}

// Writer exports transactions as CSV.
type Writer struct {
	// DateFormat is a Go layout; empty means YYYY-MM-DD.
	DateFormat string
}

// Write emits Header followed by one sanitised row per transaction.
func (w Writer) Write(out io.Writer, transactions []model.Transaction) error {
	layout := w.DateFormat
	if layout == "" {
		layout = "2006-01-02"
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, txn := range transactions {
		row := []string{
			txn.ID,
			txn.Date.Format(layout),
			txn.Account,
			txn.Vendor,
			txn.Category,
			txn.SubCategory,
			decimal.NewFromFloat(txn.Amount).StringFixed(2),
			txn.Currency,
			txn.Remarks,
			txn.TransferID,
			txn.RecurrenceID,
		}
		for i := range row {
			row[i] = SanitizeField(row[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write transaction %s: %w", txn.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
