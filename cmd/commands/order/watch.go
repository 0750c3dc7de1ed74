package order

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/auditlog"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"

	"github.com/spf13/cobra"
)

func WatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <transaction-id>",
		Short: "Follow the payment of a transaction",
		Long: `Poll a payment transaction until it completes, fails or expires.

In a terminal a live view shows the countdown and the payment options:
  tab      switch gateway
  p        pay with the selected gateway
  r        check the status now
  q        quit (polling can be resumed later)

Without a terminal, status changes are printed to stderr and the command
exits non-zero when the payment fails or expires.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runWatch,
		SilenceUsage: true,
	}
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return errors.New("transaction id is required")
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	tx, err := sess.loadTransaction(cmd, id)
	if err != nil {
		return err
	}

	cmd.SetContext(auditlog.WithMetadata(cmd.Context(), auditlog.Metadata{
		ResourceType: "transaction",
		ResourceID:   tx.ID,
		Amount:       tx.Amount,
		Currency:     tx.Currency,
	}))

	if !tx.Status.Pollable() {
		reportPayment(cmd.OutOrStdout(), tx, tx.Status == domain.StatusCompleted)
		return nil
	}

	feed := newEventFeed()
	wf, err := sess.newWorkflow(cmd, workflow.Config{OnEvent: feed.send})
	if err != nil {
		return err
	}
	defer wf.Close()

	if !isTerminal() {
		printTransaction(cmd.ErrOrStderr(), tx, -1)
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err := wf.Attach(tx); err != nil {
		return err
	}
	err = followPayment(cmd, sess, wf, feed)
	if opt, ok := wf.SelectedGateway(); ok {
		cmd.SetContext(auditlog.WithMetadata(cmd.Context(), auditlog.Metadata{Gateway: opt.Gateway}))
	}
	return err
}

// loadTransaction combines the stored record of id with a fresh status
// read. Either source alone is enough; the read wins where both have data.
func (s *session) loadTransaction(cmd *cobra.Command, id string) (domain.Transaction, error) {
	record, err := s.repo.GetByTransactionID(id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to read local transaction: %w", err)
	}

	report, readErr := s.client.TransactionStatus(cmd.Context(), id)
	if readErr != nil {
		if record == nil || errors.Is(readErr, domain.ErrUnauthorized) || errors.Is(readErr, domain.ErrNotFound) {
			return domain.Transaction{}, fmt.Errorf("failed to read transaction %s: %w", id, readErr)
		}
		s.logger.Warn("status read failed, using stored transaction", "transaction_id", id, "error", readErr)
		return record.Transaction(), nil
	}

	var tx domain.Transaction
	if record != nil {
		tx = record.Transaction()
	}
	tx = mergeReport(tx, report)
	tx.ID = id

	if err := s.recorder().RecordTransaction(cmd.Context(), tx, ""); err != nil {
		s.logger.Warn("failed to record transaction", "transaction_id", id, "error", err)
	}
	return tx, nil
}

// mergeReport applies a status read to tx. A stored status never moves
// backward because of a lagging read.
func mergeReport(tx domain.Transaction, r domain.StatusReport) domain.Transaction {
	if tx.Status == "" || domain.CanTransition(tx.Status, r.Status) {
		tx.Status = r.Status
	}
	if r.Amount != 0 {
		tx.Amount = r.Amount
	}
	if r.Currency != "" {
		tx.Currency = r.Currency
	}
	if !r.ExpiresAt.IsZero() {
		tx.ExpiresAt = r.ExpiresAt
	}
	if len(r.GatewayOptions) > 0 {
		tx.GatewayOptions = r.GatewayOptions
	}
	return tx
}
