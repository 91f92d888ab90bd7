// Package storage provides the data persistence layer for the ledger.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSchedule    = errors.New("invalid scheduled transaction")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInvalidTransfer    = errors.New("invalid transfer link")
	ErrAlreadyLinked      = errors.New("transaction already linked to a transfer")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Account == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidTransaction)
	}
	return nil
}

func validateFilter(filter service.TransactionFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && !filter.StartDate.Before(*filter.EndDate) {
		return ErrInvalidDateRange
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidTransaction)
	}
	return nil
}

func validateTransferLink(creditID, debitID, transferID string) error {
	if err := validateString(creditID, "creditID"); err != nil {
		return err
	}
	if err := validateString(debitID, "debitID"); err != nil {
		return err
	}
	if err := validateString(transferID, "transferID"); err != nil {
		return err
	}
	if creditID == debitID {
		return fmt.Errorf("%w: credit and debit are the same transaction", ErrInvalidTransfer)
	}
	return nil
}

func validateScheduled(st *model.ScheduledTransaction) error {
	if st == nil {
		return fmt.Errorf("%w: scheduled transaction", ErrNilParameter)
	}
	if st.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSchedule)
	}
	if st.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidSchedule)
	}
	if st.Account == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidSchedule)
	}
	if st.EndDate != nil && !st.EndDate.After(st.Date) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidSchedule)
	}
	return nil
}

func validateAccount(account *model.Account) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(account.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidAccount)
	}
	if account.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidAccount)
	}
	return nil
}
