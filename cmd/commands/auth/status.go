package auth

import (
	"fmt"
	"os"

	"nathanbeddoewebdev/vpsorder/internal/tui"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

// stdoutIsTerminal decides between the TUI card and a plain line. Tests
// replace it.
var stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long: `Show whether a token is available for the configured API host and
where it comes from.

Example:
  vpsorder auth status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL, err := resolveAPIURL(cmd)
			if err != nil {
				return err
			}
			status := tui.CheckAccount(storeFactory(), apiURL)

			// Use TUI in interactive terminal.
			if stdoutIsTerminal() {
				if err := tui.RunAuthStatus(status); err != nil {
					return fmt.Errorf("auth status failed: %w", err)
				}
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status.Account, status.Describe())
			return nil
		},
		SilenceUsage: true,
	}

	return cmd
}
