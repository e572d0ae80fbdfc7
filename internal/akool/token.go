package akool

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Akool tokens are long-lived; the provider documents them as valid for a
// year.
const tokenTTL = 365 * 24 * time.Hour

// TokenCache holds a provider auth token with its expiry behind a mutex so
// concurrent pipeline tasks share one token instead of racing on refresh.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// get returns the cached token if still valid, or the zero value.
func (tc *TokenCache) get(now time.Time) string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.token != "" && now.Before(tc.expiresAt) {
		return tc.token
	}
	return ""
}

// set stores a freshly issued token.
func (tc *TokenCache) set(token string, now time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = token
	tc.expiresAt = now.Add(tokenTTL)
}

// getValidToken returns a token usable for API calls, refreshing the cached
// one from the getToken endpoint when expired. A direct API key, when
// configured, bypasses the token exchange entirely.
func (c *Client) getValidToken(ctx context.Context) (string, error) {
	if c.apiKey != "" && c.clientID == "" {
		return c.apiKey, nil
	}

	now := c.now()
	if token := c.tokens.get(now); token != "" {
		return token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", ErrCredentialsNotConfigured
	}

	var resp tokenResponse
	url := c.baseURL + "/api/open/v3/getToken"
	body := tokenRequest{ClientID: c.clientID, ClientSecret: c.clientSecret}
	if err := c.doJSON(ctx, http.MethodPost, url, "", body, &resp); err != nil {
		return "", fmt.Errorf("akool: get token: %w", err)
	}

	if resp.Code != codeOK {
		return "", fmt.Errorf("%w: code %d: %s", ErrTokenRejected, resp.Code, resp.Msg)
	}
	if resp.Token == "" {
		return "", ErrTokenRejected
	}

	c.tokens.set(resp.Token, now)
	return resp.Token, nil
}
