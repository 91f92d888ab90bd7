package testutil

import (
	"context"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// FetchCall records the window one GetTransactions call asked for.
type FetchCall struct {
	Start time.Time
	End   time.Time
}

// Provider is an in-memory bank feed. Transactions outside the requested
// window are filtered out the way Plaid and SimpleFIN do.
type Provider struct {
	Err          error
	AccountList  []model.Account
	Transactions []model.Transaction
	Fetches      []FetchCall
}

// GetTransactions returns the stored transactions dated within [start, end].
func (p *Provider) GetTransactions(_ context.Context, start, end time.Time) ([]model.Transaction, error) {
	p.Fetches = append(p.Fetches, FetchCall{Start: start, End: end})
	if p.Err != nil {
		return nil, p.Err
	}

	last := model.StartOfDay(end).AddDate(0, 0, 1)
	var out []model.Transaction
	for _, txn := range p.Transactions {
		if !txn.Date.Before(model.StartOfDay(start)) && txn.Date.Before(last) {
			out = append(out, txn)
		}
	}
	return out, nil
}

// GetAccounts returns the account names.
func (p *Provider) GetAccounts(ctx context.Context) ([]string, error) {
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.Name)
	}
	return names, nil
}

// Accounts returns AccountList, or Err.
func (p *Provider) Accounts(context.Context) ([]model.Account, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.AccountList, nil
}

var _ service.TransactionSource = (*Provider)(nil)
