package auth

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/config"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API authentication",
		Long: `Manage authentication for the business API.

Tokens are stored in the local keychain, one per API host, so staging and
production tokens can live side by side. The VPSORDER_TOKEN environment
variable takes precedence over the keychain.`,
	}

	cmd.PersistentFlags().String("api-url", "", "API base URL the token belongs to (defaults to the configured api-url)")

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}

// resolveAPIURL returns --api-url or the configured API URL.
func resolveAPIURL(cmd *cobra.Command) (string, error) {
	if flag, _ := cmd.Flags().GetString("api-url"); strings.TrimSpace(flag) != "" {
		return strings.TrimRight(strings.TrimSpace(flag), "/"), nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	apiURL := cfg.ResolvedAPIURL()
	if apiURL == "" {
		return "", fmt.Errorf("no API URL configured (pass --api-url, run 'vpsorder config set api-url <url>' or set %s)", config.EnvAPIURL)
	}
	return apiURL, nil
}
