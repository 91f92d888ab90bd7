package simplefin

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsJSON = `{
  "errors": ["Connection to First Bank may need attention"],
  "accounts": [{
    "org": {"name": "First Bank", "domain": "firstbank.example"},
    "id": "ACT-1",
    "name": "Everyday Checking",
    "currency": "usd",
    "balance": "1200.50",
    "balance-date": 1712059200,
    "transactions": [
      {"id": "T1", "posted": 1712059200, "amount": "-4.25", "description": "SQ *BLUE BOTTLE", "payee": "Blue Bottle"},
      {"id": "T2", "posted": 1712145600, "amount": "2500.00", "description": "ACME PAYROLL"},
      {"id": "T3", "posted": 1712145600, "amount": "-9.99", "description": "PENDING STREAM", "pending": true},
      {"id": "T4", "posted": 1712145600, "amount": "not-a-number", "description": "BROKEN"}
    ]
  }, {
    "org": {"name": "Points Club"},
    "id": "ACT-2",
    "name": "",
    "currency": "https://points.example/currency",
    "transactions": []
  }]
}`

func fastRetry(c *Client) {
	c.retryOpts = service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func bridge(t *testing.T, handler http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, strings.Replace(srv.URL, "http://", "http://user:secret@", 1) + "/simplefin"
}

func TestGetTransactions(t *testing.T) {
	var query string
	_, accessURL := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "/simplefin/accounts", r.URL.Path)
		query = r.URL.RawQuery
		_, _ = fmt.Fprint(w, accountsJSON)
	})

	client, err := NewClient(context.Background(), &Config{
		AccessURL:    accessURL,
		AccountNames: map[string]string{"ACT-1": "Checking"},
	})
	require.NoError(t, err)

	start := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC)
	txns, err := client.GetTransactions(context.Background(), start, end)
	require.NoError(t, err)

	assert.Contains(t, query, fmt.Sprintf("start-date=%d", start.Unix()))
	assert.Contains(t, query, fmt.Sprintf("end-date=%d", end.AddDate(0, 0, 1).Unix()))
	assert.NotContains(t, query, "pending")

	require.Len(t, txns, 2)

	coffee := txns[0]
	assert.Equal(t, "Checking:T1", coffee.ID)
	assert.Equal(t, "Blue Bottle", coffee.Vendor)
	assert.Equal(t, "SQ *BLUE BOTTLE", coffee.Remarks)
	assert.Equal(t, "Checking", coffee.Account)
	assert.Equal(t, "USD", coffee.Currency)
	assert.InDelta(t, -4.25, coffee.Amount, 0.0001)
	assert.Equal(t, time.Date(2024, time.April, 2, 12, 0, 0, 0, time.UTC), coffee.Date)
	assert.NotEmpty(t, coffee.Hash)

	payroll := txns[1]
	assert.Equal(t, "ACME PAYROLL", payroll.Vendor)
	assert.Empty(t, payroll.Remarks)
	assert.InDelta(t, 2500.0, payroll.Amount, 0.0001)
}

func TestGetTransactions_IncludePendingAndRange(t *testing.T) {
	var query string
	_, accessURL := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = fmt.Fprint(w, accountsJSON)
	})

	client, err := NewClient(context.Background(), &Config{AccessURL: accessURL, IncludePending: true})
	require.NoError(t, err)

	// The bridge returns everything; rows outside the window are dropped.
	day := time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)
	txns, err := client.GetTransactions(context.Background(), day, day)
	require.NoError(t, err)

	assert.Contains(t, query, "pending=1")
	require.Len(t, txns, 2)
	assert.Equal(t, "Everyday Checking:T2", txns[0].ID)
	assert.Equal(t, "Everyday Checking:T3", txns[1].ID)
}

func TestGetTransactions_RejectsInvertedRange(t *testing.T) {
	client, err := NewClient(context.Background(), &Config{AccessURL: "https://bridge.example/simplefin"})
	require.NoError(t, err)

	_, err = client.GetTransactions(context.Background(),
		time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestAccounts(t *testing.T) {
	_, accessURL := bridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("balances-only"))
		_, _ = fmt.Fprint(w, accountsJSON)
	})

	client, err := NewClient(context.Background(), &Config{AccessURL: accessURL})
	require.NoError(t, err)

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Everyday Checking", accounts[0].Name)
	assert.Equal(t, "USD", accounts[0].Currency)
	assert.Equal(t, "First Bank", accounts[0].Remarks)
	assert.Equal(t, "ACT-2", accounts[1].Name)
	assert.Empty(t, accounts[1].Currency)

	names, err := client.GetAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Everyday Checking", "ACT-2"}, names)
}

func TestFetch_Retries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "server error is retried", status: http.StatusBadGateway, wantCalls: 3, wantErr: true},
		{name: "rate limit is retried", status: http.StatusTooManyRequests, wantCalls: 3, wantErr: true},
		{name: "forbidden fails at once", status: http.StatusForbidden, wantCalls: 1, wantErr: true},
		{name: "recovers after one failure", status: http.StatusServiceUnavailable, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			_, accessURL := bridge(t, func(w http.ResponseWriter, _ *http.Request) {
				n := calls.Add(1)
				if !tt.wantErr && n > 1 {
					_, _ = fmt.Fprint(w, `{"accounts": []}`)
					return
				}
				w.WriteHeader(tt.status)
			})

			client, err := NewClient(context.Background(), &Config{AccessURL: accessURL})
			require.NoError(t, err)
			fastRetry(client)

			_, err = client.Accounts(context.Background())
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewClient_ClaimsSetupToken(t *testing.T) {
	var claims atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/claim/abc":
			assert.Equal(t, http.MethodPost, r.Method)
			claims.Add(1)
			_, _ = fmt.Fprint(w, strings.Replace("http://"+r.Host, "http://", "http://user:secret@", 1)+"/simplefin")
		case "/simplefin/accounts":
			_, _ = fmt.Fprint(w, `{"accounts": []}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	token := base64.StdEncoding.EncodeToString([]byte(srv.URL + "/claim/abc"))
	stateFile := filepath.Join(t.TempDir(), "nested", "simplefin.json")
	cfg := &Config{SetupToken: token, StateFile: stateFile}

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "user", client.username)
	assert.Equal(t, "secret", client.password)

	info, err := os.Stat(stateFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// The saved access URL is reused instead of claiming again.
	_, err = NewClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), claims.Load())
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{StateFile: filepath.Join(t.TempDir(), "none.json")})
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = NewClient(context.Background(), nil)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestClaim_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "not a url", token: base64.StdEncoding.EncodeToString([]byte("hello"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := claim(context.Background(), http.DefaultClient, tt.token)
			require.Error(t, err)
		})
	}
}
