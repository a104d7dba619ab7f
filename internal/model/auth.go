package model

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// AuthManager holds a refreshable OAuth2 token for providers that
// authenticate via an OAuth flow rather than a static API key (e.g. a
// ChatGPT-plan login instead of a raw OpenAI API key). Safe for concurrent
// use; refresh happens at most once per expired token even under
// concurrent callers.
type AuthManager struct {
	source oauth2.TokenSource

	mu    sync.Mutex
	token *oauth2.Token
}

// NewAuthManager wraps a TokenSource (e.g. oauth2.Config.TokenSource) with
// single-flight refresh semantics.
func NewAuthManager(source oauth2.TokenSource) *AuthManager {
	return &AuthManager{source: source}
}

// Token returns a valid access token, refreshing it first if expired.
func (m *AuthManager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil && m.token.Valid() {
		return m.token, nil
	}
	tok, err := m.source.Token()
	if err != nil {
		return nil, err
	}
	m.token = tok
	return tok, nil
}

// RefreshToken forces a refresh regardless of the cached token's validity,
// used after a provider returns 401 mid-stream.
func (m *AuthManager) RefreshToken(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return m.Token(ctx)
}

// IsUnauthorized reports whether err corresponds to a 401 response,
// independent of which provider produced it.
func IsUnauthorized(err error) bool {
	var httpErr RetryableHttpError
	if errors.As(err, &httpErr) {
		return httpErr.Status == 401
	}
	return false
}
