package sheets

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForecastRow is one projected occurrence as written to the sheet.
type ForecastRow struct {
	Date       time.Time
	Amount     decimal.Decimal
	Vendor     string
	Account    string
	Category   string
	Currency   string
	ScheduleID string
}

// CurrencyRow is one line of the per-currency summary block.
type CurrencyRow struct {
	Currency string
	Inflow   decimal.Decimal
	Outflow  decimal.Decimal
	Net      decimal.Decimal
	Count    int
}
