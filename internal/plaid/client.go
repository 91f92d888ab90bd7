// Package plaid imports transactions and accounts from the Plaid API.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/plaid/plaid-go/v20/plaid"
)

const (
	dateLayout = "2006-01-02"
	// Plaid's maximum page size for /transactions/get.
	pageSize = int32(500)
)

// Config holds Plaid API configuration.
type Config struct {
	// AccountNames maps Plaid account IDs to ledger account names.
	AccountNames   map[string]string
	ClientID       string
	Secret         string
	Environment    string // sandbox or production
	AccessToken    string
	IncludePending bool
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	case c.Secret == "":
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	case c.AccessToken == "":
		return fmt.Errorf("%w: plaid access token is required", common.ErrMissingConfig)
	case c.Environment == "":
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	case c.Environment != "sandbox" && c.Environment != "production":
		return fmt.Errorf("%w: plaid environment must be sandbox or production", common.ErrInvalidConfig)
	}
	return nil
}

// Client implements service.TransactionSource against Plaid.
type Client struct {
	client    *plaid.APIClient
	logger    *slog.Logger
	retryOpts service.RetryOptions
	config    Config
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: plaid config", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	return &Client{
		client: plaid.NewAPIClient(configuration),
		config: *cfg,
		logger: common.Component("plaid"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches posted transactions between startDate and endDate
// inclusive, paging through the full result set.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, errors.New("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format(dateLayout),
		"end_date", endDate.Format(dateLayout))

	var fetched []plaid.Transaction
	for offset := int32(0); ; offset += pageSize {
		var page []plaid.Transaction
		var total int32

		err := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.config.AccessToken,
				startDate.Format(dateLayout),
				endDate.Format(dateLayout),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.classify(err, "failed to fetch transactions")
			}

			page = resp.GetTransactions()
			total = resp.GetTotalTransactions()
			return nil
		}, c.retryOpts)
		if err != nil {
			return nil, err
		}

		fetched = append(fetched, page...)
		c.logger.Debug("Fetched transaction page", "count", len(page), "offset", offset, "total", total)

		if len(page) < int(pageSize) || int32(len(fetched)) >= total {
			break
		}
	}

	transactions := make([]model.Transaction, 0, len(fetched))
	for _, pt := range fetched {
		if pt.GetPending() && !c.config.IncludePending {
			continue
		}
		txn, err := mapTransaction(pt, c.config.AccountNames)
		if err != nil {
			c.logger.Warn("Skipping Plaid transaction", "id", pt.GetTransactionId(), "error", err)
			continue
		}
		transactions = append(transactions, txn)
	}

	c.logger.Info("Fetched all transactions", "count", len(transactions))
	return transactions, nil
}

// GetAccounts returns the ledger names of every account on the Plaid item.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(accounts))
	for _, account := range accounts {
		names = append(names, account.Name)
	}
	return names, nil
}

// Accounts returns every account on the Plaid item as ledger accounts.
func (c *Client) Accounts(ctx context.Context) ([]model.Account, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	err := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.config.AccessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.classify(err, "failed to fetch accounts")
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	result := make([]model.Account, 0, len(accounts))
	for _, acct := range accounts {
		balances := acct.GetBalances()
		result = append(result, model.Account{
			Name:     accountName(acct.GetAccountId(), c.config.AccountNames),
			Currency: balances.GetIsoCurrencyCode(),
			Type:     accountType(string(acct.GetType()), string(acct.GetSubtype())),
			Remarks:  acct.GetName(),
		})
	}

	c.logger.Info("Fetched accounts", "count", len(result))
	return result, nil
}

// classify turns Plaid API failures into retryable or terminal errors.
func (c *Client) classify(err error, msg string) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %s: %w", common.ErrProviderConnection, msg, err),
			Retryable: true,
		}
	}

	apiErr := fmt.Errorf("plaid API error: %s - %s", plaidErr.ErrorCode, plaidErr.ErrorMessage)
	if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		c.logger.Warn("Rate limit hit, will retry", "error", plaidErr.ErrorMessage)
		return fmt.Errorf("%w: %w", common.ErrRateLimit, apiErr)
	}
	return &common.RetryableError{Err: apiErr, Retryable: false}
}

// mapTransaction converts a Plaid transaction into the ledger's sign
// convention. Plaid reports outflows as positive amounts; the ledger stores
// them negative.
func mapTransaction(pt plaid.Transaction, names map[string]string) (model.Transaction, error) {
	date, err := time.Parse(dateLayout, pt.GetDate())
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q: %w", pt.GetDate(), err)
	}
	// Noon keeps the calendar day stable across time zones.
	date = date.Add(12 * time.Hour)

	vendor := pt.GetMerchantName()
	if vendor == "" {
		vendor = pt.GetName()
	}

	var category, subCategory string
	if cats := pt.GetCategory(); len(cats) > 0 {
		category = cats[0]
		if len(cats) > 1 {
			subCategory = cats[len(cats)-1]
		}
	}

	currency := pt.GetIsoCurrencyCode()
	if currency == "" {
		currency = pt.GetUnofficialCurrencyCode()
	}

	var remarks string
	if num := pt.GetCheckNumber(); num != "" {
		remarks = "Check #" + num
	}

	txn := model.Transaction{
		ID:          pt.GetTransactionId(),
		Date:        date,
		Vendor:      cleanVendorName(vendor),
		Account:     accountName(pt.GetAccountId(), names),
		Category:    category,
		SubCategory: subCategory,
		Currency:    strings.ToUpper(currency),
		Remarks:     remarks,
		Amount:      -pt.GetAmount(),
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func accountName(id string, names map[string]string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func accountType(kind, subtype string) model.AccountType {
	switch {
	case kind == "credit":
		return model.AccountCredit
	case kind == "investment":
		return model.AccountInvestment
	case subtype == "checking":
		return model.AccountChecking
	case subtype == "savings" || subtype == "money market":
		return model.AccountSavings
	default:
		return model.AccountOther
	}
}

var corporateSuffixes = []string{" Llc", " Inc", " Corp", " Corporation", " Company", " Co", " Ltd", " Limited"}

// cleanVendorName title-cases a vendor, drops a trailing reference number
// longer than five digits and strips corporate suffixes.
func cleanVendorName(name string) string {
	words := strings.Fields(strings.ToLower(name))
	for i, word := range words {
		runes := []rune(word)
		for j := range runes {
			if j == 0 || !unicode.IsLetter(runes[j-1]) {
				runes[j] = unicode.ToUpper(runes[j])
			}
		}
		words[i] = string(runes)
	}

	if n := len(words); n > 1 && len(words[n-1]) > 5 && isAllDigits(words[n-1]) {
		words = words[:n-1]
	}
	name = strings.Join(words, " ")

	for trimmed := true; trimmed; {
		trimmed = false
		for _, suffix := range corporateSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				trimmed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var _ service.TransactionSource = (*Client)(nil)
