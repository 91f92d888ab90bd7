package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

// saveBatchSize bounds how many rows one write transaction holds.
const saveBatchSize = 500

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := config.ExpandPath(viper.GetString(config.KeyDatabasePath))
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// parseDay parses a YYYY-MM-DD flag value in the local zone. Empty returns fallback.
func parseDay(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// dateRange resolves --from/--to flags. to defaults to today, from to
// days before to. The returned end is exclusive: the day after to.
func dateRange(from, to string, days int) (service.DateRange, error) {
	end, err := parseDay(to, model.StartOfDay(time.Now()))
	if err != nil {
		return service.DateRange{}, err
	}
	start, err := parseDay(from, end.AddDate(0, 0, -days))
	if err != nil {
		return service.DateRange{}, err
	}
	if start.After(end) {
		return service.DateRange{}, fmt.Errorf("--from %s is after --to %s", start.Format(dateLayout), end.Format(dateLayout))
	}
	return service.DateRange{Start: start, End: end.AddDate(0, 0, 1)}, nil
}

// transactionsIn loads every stored transaction in r, optionally for one account.
func transactionsIn(ctx context.Context, store service.Storage, r service.DateRange, account string) ([]model.Transaction, error) {
	start, end := r.Start, r.End
	txns, err := store.GetTransactions(ctx, service.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
		Account:   account,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return txns, nil
}

// currencyLookup returns a function giving each stored account's currency.
func currencyLookup(ctx context.Context, store service.Storage) (func(string) string, error) {
	accounts, err := store.GetAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	byName := make(map[string]string, len(accounts))
	for _, a := range accounts {
		byName[a.Name] = a.Currency
	}
	return func(account string) string { return byName[account] }, nil
}
