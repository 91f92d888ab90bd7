// Package simplefin imports transactions and accounts from a SimpleFIN Bridge.
package simplefin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Config holds SimpleFIN configuration. Either AccessURL or SetupToken must be
// set; a claimed setup token is cached in StateFile.
type Config struct {
	// AccountNames maps SimpleFIN account IDs to ledger account names.
	AccountNames   map[string]string
	HTTPClient     *http.Client
	AccessURL      string
	SetupToken     string
	StateFile      string
	IncludePending bool
}

// Client implements service.TransactionSource against a SimpleFIN Bridge.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   *url.URL
	username   string
	password   string
	retryOpts  service.RetryOptions
	config     Config
}

// NewClient resolves the access URL, claiming the setup token if needed.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: simplefin config", common.ErrMissingConfig)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	accessURL := cfg.AccessURL
	if accessURL == "" {
		state, err := LoadOrClaim(ctx, httpClient, cfg.SetupToken, cfg.StateFile)
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				return nil, fmt.Errorf("%w: %w", common.ErrMissingConfig, err)
			}
			return nil, err
		}
		accessURL = state.AccessURL
	}

	endpoint, err := url.Parse(accessURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid SimpleFIN access URL: %w", common.ErrInvalidConfig, err)
	}

	c := &Client{
		httpClient: httpClient,
		config:     *cfg,
		logger:     common.Component("simplefin"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
	if endpoint.User != nil {
		c.username = endpoint.User.Username()
		c.password, _ = endpoint.User.Password()
		endpoint.User = nil
	}
	c.endpoint = endpoint
	return c, nil
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	Org struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
	} `json:"org"`
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Balance      string        `json:"balance"`
	Transactions []transaction `json:"transactions"`
	BalanceDate  int64         `json:"balance-date"`
}

type transaction struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Payee       string `json:"payee"`
	Memo        string `json:"memo"`
	Posted      int64  `json:"posted"`
	Pending     bool   `json:"pending"`
}

// GetTransactions fetches posted transactions between startDate and endDate
// inclusive.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, errors.New("start date must be before end date")
	}

	start := dayOf(startDate)
	end := dayOf(endDate).AddDate(0, 0, 1)

	c.logger.Info("Fetching transactions from SimpleFIN",
		"start_date", start.Format(dateLayout),
		"end_date", dayOf(endDate).Format(dateLayout))

	query := url.Values{}
	query.Set("start-date", strconv.FormatInt(start.Unix(), 10))
	query.Set("end-date", strconv.FormatInt(end.Unix(), 10))
	if c.config.IncludePending {
		query.Set("pending", "1")
	}

	set, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for _, acct := range set.Accounts {
		for _, st := range acct.Transactions {
			if st.Pending && !c.config.IncludePending {
				continue
			}
			txn, err := mapTransaction(st, acct, c.config.AccountNames)
			if err != nil {
				c.logger.Warn("Skipping SimpleFIN transaction", "account", acct.ID, "id", st.ID, "error", err)
				continue
			}
			if txn.Date.Before(start) || !txn.Date.Before(end) {
				continue
			}
			transactions = append(transactions, txn)
		}
	}

	c.logger.Info("Fetched all transactions", "count", len(transactions))
	return transactions, nil
}

// GetAccounts returns the ledger names of every account behind the access URL.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		names = append(names, acct.Name)
	}
	return names, nil
}

// Accounts returns every account behind the access URL as ledger accounts.
func (c *Client) Accounts(ctx context.Context) ([]model.Account, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	query := url.Values{}
	query.Set("balances-only", "1")
	set, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	result := make([]model.Account, 0, len(set.Accounts))
	for _, acct := range set.Accounts {
		result = append(result, model.Account{
			Name:     accountName(acct, c.config.AccountNames),
			Currency: currencyCode(acct.Currency),
			Type:     model.AccountOther,
			Remarks:  acct.Org.Name,
		})
	}

	c.logger.Info("Fetched accounts", "count", len(result))
	return result, nil
}

func (c *Client) fetch(ctx context.Context, query url.Values) (*accountSet, error) {
	endpoint := *c.endpoint
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + "/accounts"
	endpoint.RawQuery = query.Encode()

	var set accountSet
	err := common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %w", common.ErrProviderConnection, err),
				Retryable: true,
			}
		}
		defer func() { _ = resp.Body.Close() }()

		if err := c.classify(resp); err != nil {
			return err
		}

		set = accountSet{}
		if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
			return &common.RetryableError{
				Err:       fmt.Errorf("failed to decode SimpleFIN response: %w", err),
				Retryable: false,
			}
		}
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported a problem", "message", msg)
	}
	return &set, nil
}

// classify turns HTTP failures into retryable or terminal errors.
func (c *Client) classify(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	apiErr := fmt.Errorf("simplefin API error: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("Rate limit hit, will retry")
		return fmt.Errorf("%w: %w", common.ErrRateLimit, apiErr)
	case resp.StatusCode >= 500:
		return &common.RetryableError{Err: apiErr, Retryable: true}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return &common.RetryableError{
			Err:       fmt.Errorf("access URL rejected, claim a new setup token: %w", apiErr),
			Retryable: false,
		}
	default:
		return &common.RetryableError{Err: apiErr, Retryable: false}
	}
}

// mapTransaction keeps SimpleFIN's sign: negative amounts leave the account.
func mapTransaction(st transaction, acct account, names map[string]string) (model.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(st.Amount))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q: %w", st.Amount, err)
	}
	if st.Posted <= 0 {
		return model.Transaction{}, errors.New("transaction has no posted date")
	}

	vendor := strings.TrimSpace(st.Payee)
	remarks := strings.TrimSpace(st.Memo)
	if vendor == "" {
		vendor = strings.TrimSpace(st.Description)
	} else if remarks == "" && !strings.EqualFold(st.Description, vendor) {
		remarks = strings.TrimSpace(st.Description)
	}

	name := accountName(acct, names)
	txn := model.Transaction{
		ID:       name + ":" + st.ID,
		Date:     dayOf(time.Unix(st.Posted, 0)).Add(12 * time.Hour),
		Vendor:   vendor,
		Account:  name,
		Currency: currencyCode(acct.Currency),
		Remarks:  remarks,
		Amount:   amount.InexactFloat64(),
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func accountName(acct account, names map[string]string) string {
	if name, ok := names[acct.ID]; ok && name != "" {
		return name
	}
	if acct.Name != "" {
		return acct.Name
	}
	return acct.ID
}

// currencyCode drops custom currencies, which SimpleFIN identifies by URL.
func currencyCode(currency string) string {
	if isHTTPURL(currency) {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(currency))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ service.TransactionSource = (*Client)(nil)
