// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time // Exclusive
	Account   string
	Limit     int
	Offset    int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	LinkTransfer(ctx context.Context, creditID, debitID, transferID string) error
	UnlinkTransfer(ctx context.Context, transferID string) error

	// Scheduled transaction operations
	SaveScheduledTransaction(ctx context.Context, st *model.ScheduledTransaction) error
	GetScheduledTransactions(ctx context.Context) ([]model.ScheduledTransaction, error)
	GetScheduledTransaction(ctx context.Context, id string) (*model.ScheduledTransaction, error)
	DeleteScheduledTransaction(ctx context.Context, id string) error
	MarkScheduleProcessed(ctx context.Context, id string, processedAt time.Time) error

	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccounts(ctx context.Context) ([]model.Account, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// TransactionSource fetches transactions from an external provider.
type TransactionSource interface {
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

// ForecastWriter publishes projected occurrences somewhere outside the ledger.
type ForecastWriter interface {
	WriteForecast(ctx context.Context, occurrences []model.Occurrence, summary *ForecastSummary) error
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// CurrencyTotal aggregates flows for one currency.
type CurrencyTotal struct {
	Currency string
	Inflow   float64
	Outflow  float64
	Net      float64
	Count    int
}

// ForecastSummary describes a projection run.
type ForecastSummary struct {
	DateRange  DateRange
	Currencies []CurrencyTotal
	Projected  int
	Duplicates int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
