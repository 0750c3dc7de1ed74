package auth

import (
	"errors"
	"fmt"

	"nathanbeddoewebdev/vpsorder/internal/services/auth"

	"github.com/spf13/cobra"
)

func LogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "logout",
		Short:        "Remove the stored API token",
		Args:         cobra.NoArgs,
		RunE:         runLogout,
		SilenceUsage: true,
	}
	return cmd
}

func runLogout(cmd *cobra.Command, args []string) error {
	apiURL, err := resolveAPIURL(cmd)
	if err != nil {
		return err
	}
	account := auth.AccountForURL(apiURL)

	err = storeFactory().DeleteToken(account)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		fmt.Fprintf(cmd.OutOrStdout(), "No token stored for %s\n", account)
		return nil
	case err != nil:
		return fmt.Errorf("failed to remove token for %s: %w", account, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %s\n", account)
	return nil
}
