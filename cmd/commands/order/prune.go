package order

import (
	"fmt"

	"nathanbeddoewebdev/vpsorder/internal/txstore"
	"nathanbeddoewebdev/vpsorder/internal/util"

	"github.com/spf13/cobra"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old settled transactions",
		Long: `Delete completed, failed and expired transactions last updated before
the given age. Pending transactions are never pruned.

Examples:
  vpsorder order prune --older-than 30d
  vpsorder order prune --older-than 72h`,
		Args:         cobra.NoArgs,
		RunE:         runPrune,
		SilenceUsage: true,
	}

	cmd.Flags().String("older-than", "", "Age threshold, e.g. 30d or 72h")
	cmd.MarkFlagRequired("older-than")

	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("older-than")
	age, err := util.ParseAge(raw)
	if err != nil {
		return fmt.Errorf("invalid --older-than: %w", err)
	}

	repo, err := txstore.Open()
	if err != nil {
		return fmt.Errorf("failed to open transaction store: %w", err)
	}
	defer repo.Close()

	n, err := repo.DeleteOlderThan(age)
	if err != nil {
		return fmt.Errorf("failed to prune transactions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d transaction(s).\n", n)
	return nil
}
