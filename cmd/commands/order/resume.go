package order

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	ordertui "nathanbeddoewebdev/vpsorder/internal/order/tui"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
	"nathanbeddoewebdev/vpsorder/internal/txstore"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// resumeConcurrency caps parallel status reads.
const resumeConcurrency = 4

func ResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Refresh pending transactions after an interruption",
		Long: `Read the current status of every pending transaction stored on this
machine and update the local records.

When exactly one transaction is still awaiting payment, --watch follows
it the same way 'vpsorder order watch' does.`,
		Args:         cobra.NoArgs,
		RunE:         runResume,
		SilenceUsage: true,
	}

	cmd.Flags().Bool("watch", false, "Follow the payment when a single transaction is still pending")

	return cmd
}

// refreshed is the outcome of one status read during resume.
type refreshed struct {
	record txstore.TransactionRecord
	report domain.StatusReport
	err    error
}

func runResume(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	pending, err := sess.repo.ListPending()
	if err != nil {
		return fmt.Errorf("failed to list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending transactions.")
		return nil
	}

	results, err := refreshAll(cmd.Context(), sess, pending)
	if err != nil {
		return err
	}

	var stillPending []domain.Transaction
	recorder := sess.recorder()
	for i, r := range results {
		if r.err != nil {
			continue
		}
		tx := mergeReport(r.record.Transaction(), r.report)
		results[i].record.Status = tx.Status
		if err := recorder.RecordStatus(cmd.Context(), tx.ID, tx.Status, ""); err != nil {
			sess.logger.Warn("failed to record status", "transaction_id", tx.ID, "error", err)
		}
		if tx.Status.Pollable() {
			stillPending = append(stillPending, tx)
		}
	}

	printRefreshed(cmd, results)

	if !watch {
		if len(stillPending) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\nFollow a payment with: vpsorder order watch %s\n", stillPending[0].ID)
		}
		return nil
	}
	if len(stillPending) != 1 {
		return fmt.Errorf("--watch needs exactly one pending transaction, found %d", len(stillPending))
	}

	feed := newEventFeed()
	wf, err := sess.newWorkflow(cmd, workflow.Config{OnEvent: feed.send})
	if err != nil {
		return err
	}
	defer wf.Close()
	if err := wf.Attach(stillPending[0]); err != nil {
		return err
	}
	return followPayment(cmd, sess, wf, feed)
}

// refreshAll reads the status of every record concurrently. A rejected
// token fails the whole refresh; other read errors are kept per record.
func refreshAll(ctx context.Context, sess *session, records []txstore.TransactionRecord) ([]refreshed, error) {
	results := make([]refreshed, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resumeConcurrency)

	for i, rec := range records {
		results[i].record = rec
		g.Go(func() error {
			report, err := sess.client.TransactionStatus(gctx, rec.TransactionID)
			if errors.Is(err, domain.ErrUnauthorized) {
				return fmt.Errorf("failed to refresh transaction %s: %w", rec.TransactionID, err)
			}
			results[i].report = report
			results[i].err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printRefreshed(cmd *cobra.Command, results []refreshed) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tAMOUNT\tSTATUS\tNOTE")
	fmt.Fprintln(tw, "-----------\t------\t------\t----")
	for _, r := range results {
		note := "-"
		if r.err != nil {
			note = "refresh failed: " + r.err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.record.TransactionID,
			ordertui.FormatMoney(r.record.Amount, r.record.Currency),
			r.record.Status,
			note,
		)
	}
	tw.Flush()
}
