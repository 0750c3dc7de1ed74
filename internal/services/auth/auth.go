// Package auth stores business API tokens in the OS keychain and turns
// them into request headers.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const ServiceName = "vpsorder"

// EnvToken, when set, is used instead of the stored token.
const EnvToken = "VPSORDER_TOKEN"

var (
	ErrTokenNotFound = errors.New("auth token not found")
	ErrInvalidToken  = errors.New("invalid API token")
)

// Store keeps one token per account. An account is the API host the token
// was issued by, so staging and production tokens can live side by side.
type Store interface {
	SetToken(account string, token string) error
	GetToken(account string) (string, error)
	DeleteToken(account string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// AccountForURL derives the account key from an API base URL: its
// lowercased host, or the trimmed input when it does not parse as a URL.
func AccountForURL(apiURL string) string {
	s := strings.TrimSpace(apiURL)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return normalizeAccount(u.Host)
	}
	return normalizeAccount(s)
}

func normalizeAccount(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanToken trims a pasted token and drops a leading "Bearer " scheme,
// since the provider adds its own. Empty tokens and tokens with inner
// whitespace are rejected with ErrInvalidToken.
func CleanToken(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if len(token) > len("bearer ") && strings.EqualFold(token[:len("bearer ")], "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	if token == "" {
		return "", fmt.Errorf("%w: token cannot be empty", ErrInvalidToken)
	}
	if strings.ContainsFunc(token, unicode.IsSpace) {
		return "", fmt.Errorf("%w: token must not contain whitespace", ErrInvalidToken)
	}
	return token, nil
}
