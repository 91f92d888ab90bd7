// Package sheets publishes ledger forecasts to Google Sheets.
package sheets

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// ErrNoAuth is returned when neither OAuth2 nor service-account credentials are configured.
var ErrNoAuth = fmt.Errorf("%w: no Google Sheets credentials", common.ErrMissingConfig)

// AuthMethod is how the writer obtains Google credentials.
type AuthMethod string

const (
	AuthNone           AuthMethod = ""
	AuthOAuth          AuthMethod = "oauth"
	AuthServiceAccount AuthMethod = "service_account"
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TokenFile          string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	// ForecastSheet names the tab that is cleared and rewritten on publish.
	ForecastSheet    string
	TimeZone         string
	CurrencyPattern  string
	Retry            service.RetryOptions
	BatchSize        int
	EnableFormatting bool
}

// DefaultConfig returns the settings used when the config file is silent.
func DefaultConfig() Config {
	return Config{
		SpreadsheetName:  "Ledger Forecast",
		ForecastSheet:    "Forecast",
		TimeZone:         "UTC",
		CurrencyPattern:  "#,##0.00",
		EnableFormatting: true,
		BatchSize:        1000,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Auth reports which credentials are configured. Both being set is an error
// caught by Validate; Auth prefers the service account.
func (c *Config) Auth() AuthMethod {
	switch {
	case c.ServiceAccountPath != "":
		return AuthServiceAccount
	case c.ClientID != "" && c.ClientSecret != "" && (c.RefreshToken != "" || c.TokenFile != ""):
		return AuthOAuth
	default:
		return AuthNone
	}
}

// Validate checks that exactly one credential kind is configured and that
// the publishing settings are usable.
func (c *Config) Validate() error {
	if c.Auth() == AuthNone {
		return ErrNoAuth
	}
	if c.ServiceAccountPath != "" && c.ClientID != "" {
		return fmt.Errorf("%w: both OAuth2 client and service account configured for sheets", common.ErrInvalidConfig)
	}

	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: sheets batch size must be positive", common.ErrInvalidConfig)
	case c.Retry.MaxAttempts < 0:
		return fmt.Errorf("%w: sheets retry attempts cannot be negative", common.ErrInvalidConfig)
	case c.Retry.InitialDelay < 0:
		return fmt.Errorf("%w: sheets retry delay cannot be negative", common.ErrInvalidConfig)
	case c.ForecastSheet == "":
		return fmt.Errorf("%w: sheets forecast sheet name cannot be empty", common.ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("%w: sheets timezone %q: %w", common.ErrInvalidConfig, c.TimeZone, err)
	}
	return nil
}
