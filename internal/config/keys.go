package config

import (
	"fmt"
	"net/url"
	"strings"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "api-url").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set applies a value for this key to the given Config (in memory only;
	// the caller is responsible for calling Save).
	Set func(cfg *Config, value string)

	// Validate, when set, rejects malformed values before they are stored.
	Validate func(value string) error
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	{
		Name:        "api-url",
		Description: "Base URL of the business API (overridden by " + EnvAPIURL + ")",
		Get:         func(cfg *Config) string { return cfg.APIURL },
		Set:         func(cfg *Config, v string) { cfg.APIURL = v },
		Validate:    validateHTTPURL,
	},
	{
		Name:        "preferred-gateway",
		Description: "Card gateway selected by default when offered (default " + DefaultPreferredGateway + ")",
		Get:         func(cfg *Config) string { return cfg.PreferredGateway },
		Set:         func(cfg *Config, v string) { cfg.PreferredGateway = strings.ToLower(v) },
	},
	{
		Name:        "checkout-url",
		Description: "Hosted checkout page; may contain {reference}, {amount} and {currency}",
		Get:         func(cfg *Config) string { return cfg.CheckoutURL },
		Set:         func(cfg *Config, v string) { cfg.CheckoutURL = v },
		Validate:    validateHTTPURL,
	},
	{
		Name:        "default-currency",
		Description: "Currency shown when the API omits one (default " + DefaultCurrency + ")",
		Get:         func(cfg *Config) string { return cfg.DefaultCurrency },
		Set:         func(cfg *Config, v string) { cfg.DefaultCurrency = strings.ToUpper(v) },
		Validate:    validateCurrency,
	},
}

func validateHTTPURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", v)
	}
	return nil
}

func validateCurrency(v string) error {
	if len(v) != 3 {
		return fmt.Errorf("%q is not a three-letter currency code", v)
	}
	for _, r := range v {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("%q is not a three-letter currency code", v)
		}
	}
	return nil
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
