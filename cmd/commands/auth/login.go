package auth

import (
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/services/auth"
	"nathanbeddoewebdev/vpsorder/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// storeFactory returns the token store. Tests replace it.
var storeFactory = auth.DefaultStore

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long: `Store an API token for the configured API host using the local keychain.

Examples:
  vpsorder auth login
  vpsorder auth login --api-url https://staging.example.com
  vpsorder auth login --token "$TOKEN"`,
		Args:         cobra.NoArgs,
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API token (optional, overrides prompt)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	apiURL, err := resolveAPIURL(cmd)
	if err != nil {
		return err
	}
	account := auth.AccountForURL(apiURL)
	store := storeFactory()

	token, _ := cmd.Flags().GetString("token")

	if strings.TrimSpace(token) == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("--token is required when stdin is not a terminal")
		}
		if term.IsTerminal(int(os.Stdout.Fd())) {
			result, err := tui.RunAuthLogin(account, store)
			if err != nil {
				return err
			}
			switch {
			case result == nil:
				fmt.Fprintln(cmd.ErrOrStderr(), "Login cancelled.")
			case !result.Saved:
				fmt.Fprintf(cmd.ErrOrStderr(), "Kept the existing token for %s.\n", account)
			default:
				printSaved(cmd, account, result.Suffix)
			}
			return nil
		}

		fmt.Fprint(cmd.ErrOrStderr(), "Enter API token: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		token = string(bytes)
	}

	token, err = auth.CleanToken(token)
	if err != nil {
		return err
	}
	if err := store.SetToken(account, token); err != nil {
		return err
	}

	printSaved(cmd, account, "")
	return nil
}

func printSaved(cmd *cobra.Command, account, suffix string) {
	if suffix == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s\n", account)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s (ending %s)\n", account, suffix)
}
