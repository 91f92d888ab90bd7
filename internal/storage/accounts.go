package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/model"
)

// SaveAccount creates or updates an account by name.
func (s *SQLiteStorage) SaveAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}
	return s.saveAccountTx(ctx, s.db, account)
}

func (s *SQLiteStorage) saveAccountTx(ctx context.Context, q queryable, account *model.Account) error {
	accountType := account.Type
	if accountType == "" {
		accountType = model.AccountOther
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (name, currency, type, starting_balance, remarks)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			currency = excluded.currency,
			type = excluded.type,
			starting_balance = excluded.starting_balance,
			remarks = excluded.remarks
	`, account.Name, account.Currency, string(accountType), account.StartingBalance, account.Remarks)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.Name, err)
	}
	return nil
}

// GetAccounts returns all accounts ordered by name.
func (s *SQLiteStorage) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccountsTx(ctx, s.db)
}

func (s *SQLiteStorage) getAccountsTx(ctx context.Context, q queryable) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, currency, type, starting_balance, remarks
		FROM accounts
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var (
			account     model.Account
			accountType string
		)
		if err := rows.Scan(&account.Name, &account.Currency, &accountType, &account.StartingBalance, &account.Remarks); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.Type = model.ParseAccountType(accountType)
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}
