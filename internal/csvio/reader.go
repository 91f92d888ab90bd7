package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrNoHeader is returned for an empty file.
	ErrNoHeader = errors.New("csv has no header row")
	// ErrMissingAccount is reported for rows with no account and no default.
	ErrMissingAccount = errors.New("missing account")
)

// ColumnMapping names the header of each field. Matching ignores case and
// surrounding space. Debit and Credit are an alternative to Amount for
// exports that split money in and out into unsigned columns.
type ColumnMapping struct {
	Date        string
	Amount      string
	Debit       string
	Credit      string
	Vendor      string
	Account     string
	Category    string
	SubCategory string
	Remarks     string
	Currency    string
}

// DefaultMapping matches the headers written by Writer.
func DefaultMapping() ColumnMapping {
	return ColumnMapping{
		Date:        "Date",
		Amount:      "Amount",
		Vendor:      "Vendor",
		Account:     "Account",
		Category:    "Category",
		SubCategory: "Sub Category",
		Remarks:     "Remarks",
		Currency:    "Currency",
	}
}

// RowError describes a data row that was skipped.
type RowError struct {
	Err  error
	Line int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Reader converts CSV rows into transactions.
type Reader struct {
	logger  *slog.Logger
	Mapping ColumnMapping
	// DateFormat is a d/M/y pattern, a Go layout or "auto".
	DateFormat string
	// Account and Currency fill rows whose own columns are missing or blank.
	Account  string
	Currency string
	// DecimalSeparator is '.', ',' or 0 for auto detection.
	DecimalSeparator rune
	// Comma is the field delimiter; 0 means ','.
	Comma rune
}

// NewReader returns a Reader using DefaultMapping and automatic date detection.
func NewReader() *Reader {
	return &Reader{
		logger:     common.Component("csvio"),
		Mapping:    DefaultMapping(),
		DateFormat: AutoDateFormat,
	}
}

type columns struct {
	date, amount, debit, credit    int
	vendor, account, category, sub int
	remarks, currency              int
}

func (c columns) field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func resolveColumns(header []string, m ColumnMapping) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
		return -1
	}

	cols := columns{
		date:     lookup(m.Date),
		amount:   lookup(m.Amount),
		debit:    lookup(m.Debit),
		credit:   lookup(m.Credit),
		vendor:   lookup(m.Vendor),
		account:  lookup(m.Account),
		category: lookup(m.Category),
		sub:      lookup(m.SubCategory),
		remarks:  lookup(m.Remarks),
		currency: lookup(m.Currency),
	}

	if cols.date < 0 {
		return cols, fmt.Errorf("%w: %q", ErrMissingColumn, m.Date)
	}
	if cols.amount < 0 && (cols.debit < 0 || cols.credit < 0) {
		return cols, fmt.Errorf("%w: %q (or both debit and credit columns)", ErrMissingColumn, m.Amount)
	}
	return cols, nil
}

// Read parses every data row. Rows that cannot be converted are returned as
// RowErrors and skipped; the error result is reserved for problems with the
// file as a whole.
func (r *Reader) Read(ctx context.Context, in io.Reader) ([]model.Transaction, []RowError, error) {
	if r.logger == nil {
		r.logger = common.Component("csvio")
	}

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if r.Comma != 0 {
		cr.Comma = r.Comma
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols, err := resolveColumns(header, r.Mapping)
	if err != nil {
		return nil, nil, err
	}

	var (
		transactions []model.Transaction
		rowErrors    []RowError
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowErrors = append(rowErrors, RowError{Line: parseErr.Line, Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		txn, err := r.convert(record, cols)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Line: line, Err: err})
			continue
		}
		transactions = append(transactions, txn)
	}

	r.logger.Debug("Read CSV", "transactions", len(transactions), "skipped", len(rowErrors))
	return transactions, rowErrors, nil
}

func (r *Reader) convert(record []string, cols columns) (model.Transaction, error) {
	date, err := ParseDate(cols.field(record, cols.date), r.DateFormat)
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := r.amount(record, cols)
	if err != nil {
		return model.Transaction{}, err
	}

	account := cols.field(record, cols.account)
	if account == "" {
		account = r.Account
	}
	if account == "" {
		return model.Transaction{}, ErrMissingAccount
	}

	currency := cols.field(record, cols.currency)
	if currency == "" {
		currency = r.Currency
	}

	txn := model.Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Amount:      amount.InexactFloat64(),
		Currency:    strings.ToUpper(currency),
		Vendor:      cols.field(record, cols.vendor),
		Account:     account,
		Category:    cols.field(record, cols.category),
		SubCategory: cols.field(record, cols.sub),
		Remarks:     cols.field(record, cols.remarks),
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

// amount reads the signed Amount column, or Credit minus Debit when the
// export splits them.
func (r *Reader) amount(record []string, cols columns) (decimal.Decimal, error) {
	if cols.amount >= 0 {
		return ParseAmount(cols.field(record, cols.amount), r.DecimalSeparator)
	}

	var total decimal.Decimal
	if s := cols.field(record, cols.credit); s != "" {
		credit, err := ParseAmount(s, r.DecimalSeparator)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(credit.Abs())
	}
	if s := cols.field(record, cols.debit); s != "" {
		debit, err := ParseAmount(s, r.DecimalSeparator)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Sub(debit.Abs())
	}
	return total, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
