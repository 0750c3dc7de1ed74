package order

import (
	"context"
	"errors"
	"fmt"
	"io"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
	ordertui "nathanbeddoewebdev/vpsorder/internal/order/tui"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
	"nathanbeddoewebdev/vpsorder/internal/services/auth"

	"github.com/spf13/cobra"
)

// eventBuffer sizes the channel between the workflow and the views.
const eventBuffer = 64

// eventFeed forwards poller events from the workflow to a view. Sends never
// block the poller; a view that falls behind re-reads the workflow state.
type eventFeed chan poller.Event

func newEventFeed() eventFeed {
	return make(eventFeed, eventBuffer)
}

func (f eventFeed) send(e poller.Event) {
	select {
	case f <- e:
	default:
	}
}

// followPayment shows the payment of wf until it settles. Terminals get
// the live watcher; anything else gets one line per event on stderr.
func followPayment(cmd *cobra.Command, sess *session, wf *workflow.Workflow, feed eventFeed) error {
	ctx := cmd.Context()
	if isTerminal() {
		res, err := ordertui.RunPaymentWatcher(ctx, wf, feed, auth.AccountForURL(sess.apiURL))
		if err != nil {
			return err
		}
		reportPayment(cmd.OutOrStdout(), res.Transaction, res.Completed)
		return nil
	}

	tx, _ := wf.Transaction()
	if err := waitPlain(ctx, cmd.ErrOrStderr(), wf, feed); err != nil {
		return err
	}
	if settled, ok := wf.Transaction(); ok {
		tx = settled
	}
	reportPayment(cmd.OutOrStdout(), tx, wf.PaymentComplete())
	if err := terminalError(tx); err != nil {
		return err
	}
	if view := wf.View(); !view.PaymentComplete && view.PollState == poller.StateStopped {
		if view.Notice != nil && view.Notice.Err != nil {
			return fmt.Errorf("stopped checking transaction %s: %w", tx.ID, view.Notice.Err)
		}
		return fmt.Errorf("stopped checking transaction %s", tx.ID)
	}
	return nil
}

// waitPlain prints events until the poller of wf exits.
func waitPlain(ctx context.Context, w io.Writer, wf *workflow.Workflow, feed eventFeed) error {
	done := wf.PollerDone()
	if done == nil {
		return nil
	}
	for {
		select {
		case e := <-feed:
			printEvent(w, e)
		case <-done:
			for {
				select {
				case e := <-feed:
					printEvent(w, e)
				default:
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printEvent(w io.Writer, e poller.Event) {
	switch e.Kind {
	case poller.EventStatus:
		if e.Previous != "" && e.Previous != e.Status {
			fmt.Fprintf(w, "  Status: %s -> %s\n", e.Previous, e.Status)
		}
	case poller.EventError:
		fmt.Fprintf(w, "  Could not read status, retrying: %v\n", e.Err)
	case poller.EventStopped:
		if e.Err != nil && !errors.Is(e.Err, context.Canceled) {
			fmt.Fprintf(w, "  Stopped polling: %v\n", e.Err)
		}
	case poller.EventCompleted, poller.EventFailed, poller.EventExpired:
		fmt.Fprintf(w, "  Status: %s\n", e.Status)
	}
}

// reportPayment prints how the payment ended.
func reportPayment(w io.Writer, tx domain.Transaction, completed bool) {
	switch {
	case completed:
		fmt.Fprintf(w, "Payment for transaction %s confirmed. Provisioning has started.\n", tx.ID)
	case tx.Status == domain.StatusFailed:
		fmt.Fprintf(w, "Payment for transaction %s failed. Submit the order again to retry.\n", tx.ID)
	case tx.Status == domain.StatusExpired:
		fmt.Fprintf(w, "Transaction %s expired. Submit the order again to retry.\n", tx.ID)
	case tx.ID != "":
		fmt.Fprintf(w, "Transaction %s is still %s. Resume with: vpsorder order watch %s\n", tx.ID, tx.Status, tx.ID)
	}
}

// terminalError turns an unsuccessful final status into a command error.
func terminalError(tx domain.Transaction) error {
	switch tx.Status {
	case domain.StatusFailed:
		return fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrPaymentFailed)
	case domain.StatusExpired:
		return fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrTransactionExpired)
	}
	return nil
}
