package tui

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vpsorder/internal/services/auth"

	"github.com/charmbracelet/huh"
)

// AuthLoginResult holds the outcome of the login prompt.
type AuthLoginResult struct {
	Saved    bool
	// Replaced is set when a token was already stored for the account.
	Replaced bool
	// Suffix is the last characters of the saved token, for confirmation.
	Suffix   string
}

// RunAuthLogin prompts for the API token of account (the API host) and
// stores it. When a token is already stored the operator must confirm the
// replacement. A nil result means the prompt was cancelled.
func RunAuthLogin(account string, store auth.Store) (*AuthLoginResult, error) {
	_, err := store.GetToken(account)
	replacing := err == nil

	var raw string
	replace := true
	if err := loginForm(account, replacing, &raw, &replace).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to run auth login: %w", err)
	}
	if !replace {
		return &AuthLoginResult{}, nil
	}
	return saveLogin(store, account, raw, replacing)
}

func loginForm(account string, replacing bool, raw *string, replace *bool) *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("API token").
			Description("Issued by " + account).
			Placeholder("paste your API token here").
			EchoMode(huh.EchoModePassword).
			Value(raw).
			Validate(func(s string) error {
				_, err := auth.CleanToken(s)
				return err
			}),
	}
	if replacing {
		fields = append(fields,
			huh.NewConfirm().
				Title("Replace the token stored for "+account+"?").
				Affirmative("Replace").
				Negative("Keep").
				Value(replace),
		)
	}
	return huh.NewForm(huh.NewGroup(fields...).Title("auth login"))
}

// saveLogin cleans raw and stores it for account.
func saveLogin(store auth.Store, account, raw string, replacing bool) (*AuthLoginResult, error) {
	token, err := auth.CleanToken(raw)
	if err != nil {
		return nil, err
	}
	if err := store.SetToken(account, token); err != nil {
		return nil, fmt.Errorf("failed to save token for %s: %w", account, err)
	}
	return &AuthLoginResult{Saved: true, Replaced: replacing, Suffix: tokenSuffix(token)}, nil
}

func tokenSuffix(token string) string {
	const n = 4
	if len(token) <= n*2 {
		return ""
	}
	return token[len(token)-n:]
}
