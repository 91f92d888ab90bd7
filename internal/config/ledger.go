package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyDatabasePath     = "database.path"
	KeyLogLevel         = "logging.level"
	KeyLogFormat        = "logging.format"
	KeyBaseCurrency     = "currency.base"
	KeyCurrencyRates    = "currency.rates"
	KeyTransferTimezone = "transfers.timezone"
	KeyCSVDateFormat    = "csv.date_format"
	KeyCSVDecimalSep    = "csv.decimal_separator"
)

// SetDefaults registers defaults for every key the ledger reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabasePath, DefaultDatabasePath())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyBaseCurrency, "USD")
	v.SetDefault(KeyTransferTimezone, "Local")
	v.SetDefault(KeyCSVDateFormat, "")
	v.SetDefault(KeyCSVDecimalSep, "auto")
}

// Currency is the base currency and the rates that convert one unit of each
// other currency into it.
type Currency struct {
	Rates map[string]decimal.Decimal
	Base  string
}

// LoadCurrency reads currency.base and currency.rates.<CODE>.
func LoadCurrency(v *viper.Viper) (Currency, error) {
	cur := Currency{
		Base:  strings.ToUpper(v.GetString(KeyBaseCurrency)),
		Rates: make(map[string]decimal.Decimal),
	}

	for code, raw := range v.GetStringMapString(KeyCurrencyRates) {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return Currency{}, fmt.Errorf("%w: rate for %s: %w", common.ErrInvalidConfig, code, err)
		}
		if !rate.IsPositive() {
			return Currency{}, fmt.Errorf("%w: rate for %s must be positive", common.ErrInvalidConfig, code)
		}
		cur.Rates[strings.ToUpper(code)] = rate
	}
	return cur, nil
}

// TransferLocation resolves transfers.timezone. "Local" or empty means the
// machine's zone.
func TransferLocation(v *viper.Viper) (*time.Location, error) {
	name := v.GetString(KeyTransferTimezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrInvalidConfig, KeyTransferTimezone, err)
	}
	return loc, nil
}

// DecimalSeparator decodes csv.decimal_separator. Zero means auto-detect.
func DecimalSeparator(v *viper.Viper) (rune, error) {
	switch v.GetString(KeyCSVDecimalSep) {
	case "", "auto":
		return 0, nil
	case ".":
		return '.', nil
	case ",":
		return ',', nil
	default:
		return 0, fmt.Errorf("%w: %s must be \".\", \",\" or \"auto\"", common.ErrInvalidConfig, KeyCSVDecimalSep)
	}
}
