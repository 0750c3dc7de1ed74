package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// BearerProvider authenticates API requests with a bearer token. The
// token is looked up on every request so a re-login takes effect without
// restarting a long-running watch.
type BearerProvider struct {
	Store   Store
	Account string

	// Getenv reads the override variable; nil means os.Getenv.
	Getenv func(string) string
}

// NewBearerProvider returns a provider for the account that owns apiURL.
func NewBearerProvider(store Store, apiURL string) *BearerProvider {
	return &BearerProvider{Store: store, Account: AccountForURL(apiURL)}
}

// Token returns the token to send, preferring VPSORDER_TOKEN.
func (p *BearerProvider) Token() (string, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if t := strings.TrimSpace(getenv(EnvToken)); t != "" {
		return t, nil
	}
	if p.Store == nil {
		return "", ErrTokenNotFound
	}
	return p.Store.GetToken(p.Account)
}

// AuthHeaders implements api.AuthProvider. A missing token is reported as
// domain.ErrUnauthorized so callers stop instead of retrying.
func (p *BearerProvider) AuthHeaders(_ context.Context) (http.Header, error) {
	token, err := p.Token()
	if errors.Is(err, ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: no token for %s, run `vpsorder auth login`", domain.ErrUnauthorized, p.Account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token for %s: %w", p.Account, err)
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// Source names where Token would read the token from: "environment" or
// "keychain". It returns ErrTokenNotFound when neither has one.
func (p *BearerProvider) Source() (string, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if strings.TrimSpace(getenv(EnvToken)) != "" {
		return "environment", nil
	}
	if p.Store == nil {
		return "", ErrTokenNotFound
	}
	if _, err := p.Store.GetToken(p.Account); err != nil {
		return "", err
	}
	return "keychain", nil
}
