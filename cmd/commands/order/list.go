package order

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/txstore"

	"github.com/spf13/cobra"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored payment transactions",
		Long: `List payment transactions recorded on this machine, newest first.

By default only transactions that may still be paid are shown. Use --all
to include completed, failed and expired ones.`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("all", false, "Include settled transactions")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of transactions with --all")
	cmd.Flags().StringP("output", "o", "table", "Output format: table or json")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")
	if err := checkOutput(output); err != nil {
		return err
	}

	repo, err := txstore.Open()
	if err != nil {
		return fmt.Errorf("failed to open transaction store: %w", err)
	}
	defer repo.Close()

	var records []txstore.TransactionRecord
	if all {
		records, err = repo.ListRecent(limit)
	} else {
		records, err = repo.ListPending()
	}
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	if output == "json" {
		if records == nil {
			records = []txstore.TransactionRecord{}
		}
		return printJSON(cmd, records)
	}
	if len(records) == 0 {
		if all {
			fmt.Fprintln(cmd.OutOrStdout(), "No transactions found.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending transactions.")
		}
		return nil
	}
	printRecords(cmd.OutOrStdout(), records, time.Now())
	return nil
}
