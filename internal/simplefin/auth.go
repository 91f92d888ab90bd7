package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCredentials is returned when neither an access URL, a saved claim nor
// a setup token is available.
var ErrNoCredentials = errors.New("no SimpleFIN access URL or setup token")

// AuthState is the claimed access URL saved between runs.
type AuthState struct {
	ClaimedAt time.Time `json:"claimed_at"`
	AccessURL string    `json:"access_url"`
	// TokenHint identifies the setup token without storing it.
	TokenHint string `json:"token_hint"`
}

// LoadOrClaim returns the access URL saved in stateFile, or claims token and
// saves the result there. A setup token can be claimed only once, so the
// saved state is always preferred.
func LoadOrClaim(ctx context.Context, client *http.Client, token, stateFile string) (*AuthState, error) {
	if stateFile != "" {
		state, err := loadState(stateFile)
		switch {
		case err == nil && state.AccessURL != "":
			return state, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if strings.TrimSpace(token) == "" {
		return nil, ErrNoCredentials
	}

	accessURL, err := claim(ctx, client, token)
	if err != nil {
		return nil, err
	}

	state := &AuthState{
		AccessURL: accessURL,
		ClaimedAt: time.Now(),
		TokenHint: tokenHint(token),
	}
	if stateFile != "" {
		if err := saveState(stateFile, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// claim exchanges a setup token (a base64-encoded claim URL) for an access URL.
func claim(ctx context.Context, client *http.Client, token string) (string, error) {
	token = strings.TrimSpace(token)
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return "", fmt.Errorf("failed to decode SimpleFIN setup token: %w", err)
		}
	}

	claimURL := string(decoded)
	if !isHTTPURL(claimURL) {
		return "", errors.New("SimpleFIN setup token does not contain a claim URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}
	req.Header.Set("Content-Length", "0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to claim SimpleFIN access: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read claim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("SimpleFIN claim failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !isHTTPURL(accessURL) {
		return "", errors.New("SimpleFIN claim returned an invalid access URL")
	}
	return accessURL, nil
}

func loadState(path string) (*AuthState, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}

	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &state, nil
}

func saveState(path string, state *AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save SimpleFIN access: %w", err)
	}
	return nil
}

func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:6] + "..." + token[len(token)-6:]
	}
	return "short"
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
