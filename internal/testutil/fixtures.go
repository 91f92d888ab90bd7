package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// Fixtures is a set of records to seed into a test database.
type Fixtures struct {
	Accounts     []model.Account
	Transactions []model.Transaction
	Schedules    []model.ScheduledTransaction
}

// Seed writes the fixtures to storage. Empty fixtures are a no-op.
func (f Fixtures) Seed(ctx context.Context, store service.Storage) error {
	for i := range f.Accounts {
		if err := store.SaveAccount(ctx, &f.Accounts[i]); err != nil {
			return fmt.Errorf("seed account %q: %w", f.Accounts[i].Name, err)
		}
	}

	if len(f.Transactions) > 0 {
		if _, err := store.SaveTransactions(ctx, f.Transactions); err != nil {
			return fmt.Errorf("seed transactions: %w", err)
		}
	}

	for i := range f.Schedules {
		if err := store.SaveScheduledTransaction(ctx, &f.Schedules[i]); err != nil {
			return fmt.Errorf("seed schedule %q: %w", f.Schedules[i].ID, err)
		}
	}
	return nil
}

// Ledger is a fluent builder for Fixtures.
type Ledger struct {
	fixtures Fixtures
	seq      int
}

// NewLedger returns an empty fixture builder.
func NewLedger() *Ledger {
	return &Ledger{}
}

// WithAccount adds a checking account in the given currency.
func (l *Ledger) WithAccount(name, currency string) *Ledger {
	l.fixtures.Accounts = append(l.fixtures.Accounts, model.Account{
		Name:     name,
		Currency: currency,
		Type:     model.AccountChecking,
	})
	return l
}

// WithTransaction adds a transaction. Missing IDs and hashes are filled in.
func (l *Ledger) WithTransaction(txn model.Transaction) *Ledger {
	l.seq++
	if txn.ID == "" {
		txn.ID = fmt.Sprintf("txn-%03d", l.seq)
	}
	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	l.fixtures.Transactions = append(l.fixtures.Transactions, txn)
	return l
}

// WithSpend adds an outflow of amount at vendor on date.
func (l *Ledger) WithSpend(account, vendor string, date time.Time, amount float64) *Ledger {
	return l.WithTransaction(model.Transaction{
		Date:    date,
		Vendor:  vendor,
		Account: account,
		Amount:  -amount,
	})
}

// WithSchedule adds a schedule template.
func (l *Ledger) WithSchedule(st model.ScheduledTransaction) *Ledger {
	l.seq++
	if st.ID == "" {
		st.ID = fmt.Sprintf("sched-%03d", l.seq)
	}
	l.fixtures.Schedules = append(l.fixtures.Schedules, st)
	return l
}

// Fixtures returns the accumulated fixtures.
func (l *Ledger) Fixtures() Fixtures {
	return l.fixtures
}
