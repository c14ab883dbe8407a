package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"activity-nudge-lab/internal/domain"
)

// DefaultAuthURL is the OAuth2 token host.
const DefaultAuthURL = "https://api.fitbit.com"

// TokenClient exchanges refresh tokens for new access tokens.
type TokenClient struct {
	authURL string
	client  *http.Client
}

// NewTokenClient creates a token client. Empty authURL uses DefaultAuthURL.
func NewTokenClient(authURL string, client *http.Client) *TokenClient {
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TokenClient{authURL: authURL, client: client}
}

// Refresh performs the refresh_token grant with the credential's client identity.
func (c *TokenClient) Refresh(ctx context.Context, cred domain.Credential) (*Token, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token: empty refresh token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(cred.ClientID, cred.ClientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrMalformedResponse)
	}
	return &tok, nil
}

// Apply writes the refreshed token into cred. The refresh token is kept
// when the provider does not rotate it.
func (t *Token) Apply(cred *domain.Credential, now time.Time) {
	cred.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		cred.RefreshToken = t.RefreshToken
	}
	if t.ExpiresIn > 0 {
		cred.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
}
