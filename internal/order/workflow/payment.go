package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
)

// Transaction returns a copy of the current transaction.
func (w *Workflow) Transaction() (domain.Transaction, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return domain.Transaction{}, false
	}
	return w.tx.Clone(), true
}

// SelectedGateway returns the gateway option currently chosen.
func (w *Workflow) SelectedGateway() (domain.PaymentGatewayOption, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.Current()
}

// SelectGateway chooses the option with key. Only the view-local choice
// changes; the transaction is not modified.
func (w *Workflow) SelectGateway(key string) (domain.PaymentGatewayOption, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection == nil {
		return domain.PaymentGatewayOption{}, domain.ErrNoTransaction
	}
	return w.selection.Choose(key)
}

// NextGateway cycles to the next gateway option.
func (w *Workflow) NextGateway() (domain.PaymentGatewayOption, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection == nil {
		return domain.PaymentGatewayOption{}, domain.ErrNoTransaction
	}
	opt, ok := w.selection.Next()
	if !ok {
		return domain.PaymentGatewayOption{}, fmt.Errorf("transaction %s offers no payment options", w.tx.ID)
	}
	return opt, nil
}

// Pay acts on the selected gateway option. A transfer option moves the
// transaction to transfer_pending and returns the bank details through the
// option. A card option runs the checkout; success triggers an immediate
// status check. A non-positive amount aborts with domain.ErrInvalidAmount
// before any checkout starts.
func (w *Workflow) Pay(ctx context.Context) (gateway.Outcome, error) {
	w.mu.Lock()
	if w.tx == nil {
		w.mu.Unlock()
		return gateway.Outcome{}, domain.ErrNoTransaction
	}
	tx := w.tx.Clone()
	opt, ok := w.selection.Current()
	p := w.poller
	adapter := w.checkout
	w.mu.Unlock()

	if !ok {
		return gateway.Outcome{}, fmt.Errorf("transaction %s offers no payment options", tx.ID)
	}
	if tx.Status.IsTerminal() {
		return gateway.Outcome{}, fmt.Errorf("transaction %s is already %s", tx.ID, tx.Status)
	}

	if opt.IsTransfer() {
		if p != nil {
			p.MarkTransferPending()
		}
		w.record(ctx, tx.ID, domain.StatusTransferPending, opt.Gateway)
		return gateway.Success(opt.TransactionReference), nil
	}

	req, err := gateway.NewCheckoutRequest(tx, opt)
	if err != nil {
		w.notify(Notice{Level: NoticeError, Message: "Payment aborted.", Err: err})
		return gateway.Failure(err), err
	}
	if adapter == nil {
		err := fmt.Errorf("no checkout configured for %s", opt.Gateway)
		w.notify(Notice{Level: NoticeError, Message: "Payment unavailable.", Err: err})
		return gateway.Failure(err), err
	}

	w.logger.Info("starting checkout", "transaction_id", tx.ID, "gateway", opt.Gateway, "amount_minor", req.AmountMinor)
	outcome := adapter.Checkout(ctx, req)
	switch outcome.Kind {
	case gateway.OutcomeSuccess:
		w.record(ctx, tx.ID, tx.Status, opt.Gateway)
		if p != nil {
			p.CheckNow()
		}
		w.notify(Notice{Level: NoticeInfo, Message: "Checkout finished, confirming payment."})
	case gateway.OutcomeCancel:
		w.notify(Notice{Level: NoticeWarn, Message: "Checkout cancelled."})
	default:
		w.notify(Notice{Level: NoticeError, Message: "Checkout failed.", Err: outcome.Err})
	}
	return outcome, nil
}

// CheckNow requests an immediate status read. It does nothing without a
// running poller.
func (w *Workflow) CheckNow() {
	w.mu.Lock()
	p := w.poller
	w.mu.Unlock()
	if p != nil {
		p.CheckNow()
	}
}

// PaymentComplete reports whether the current transaction completed.
func (w *Workflow) PaymentComplete() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed
}

// Remaining returns the time left before the current transaction expires,
// or -1 when it has no deadline.
func (w *Workflow) Remaining() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		return -1
	}
	return w.pollSnap.Remaining
}

// PollerDone is closed when the current poller exits. It is nil without one.
func (w *Workflow) PollerDone() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.poller == nil {
		return nil
	}
	return w.poller.Done()
}

func (w *Workflow) notify(n Notice) {
	w.mu.Lock()
	deliver := w.setNoticeLocked(n)
	w.mu.Unlock()
	deliver()
}

func (w *Workflow) record(ctx context.Context, id string, status domain.TransactionStatus, gatewayName string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordStatus(ctx, id, status, gatewayName); err != nil {
		w.logger.Warn("failed to record transaction status", "transaction_id", id, "error", err)
	}
}

// onPollerEvent applies an event from the poller of generation gen. Events
// from a replaced poller are dropped.
func (w *Workflow) onPollerEvent(gen int, e poller.Event) {
	var after []func()

	w.mu.Lock()
	if gen != w.pollerGen || w.tx == nil || w.tx.ID != e.TransactionID {
		w.mu.Unlock()
		return
	}
	if w.poller != nil {
		w.pollSnap = w.poller.Snapshot()
	}
	if e.Kind == poller.EventCountdown {
		w.pollSnap.Remaining = e.Remaining
	}

	prev := w.tx.Status
	if e.Status != "" && e.Status != prev {
		w.tx.Status = e.Status
	}
	if e.Report != nil {
		if !e.Report.ExpiresAt.IsZero() {
			w.tx.ExpiresAt = e.Report.ExpiresAt
		}
		// Re-fetched options replace the cached breakdowns; amounts are
		// never recomputed locally.
		if len(e.Report.GatewayOptions) > 0 {
			w.tx.GatewayOptions = e.Report.GatewayOptions
			w.selection.Replace(w.selector, e.Report.GatewayOptions)
		}
	}

	var selected string
	if opt, ok := w.selection.Current(); ok {
		selected = opt.Gateway
	}
	txID := w.tx.ID
	status := w.tx.Status

	switch e.Kind {
	case poller.EventCompleted:
		if !w.completed {
			w.completed = true
			after = append(after, w.setNoticeLocked(Notice{Level: NoticeInfo, Message: "Payment confirmed."}))
			if !w.handedOff {
				w.handedOff = true
				handoff := Handoff{Reason: HandoffPaymentComplete, Submission: w.submission, Transaction: ptr(w.tx.Clone())}
				if fn := w.cfg.OnHandoff; fn != nil {
					after = append(after, func() { fn(handoff) })
				}
			}
		}
	case poller.EventFailed:
		after = append(after, w.setNoticeLocked(Notice{
			Level:   NoticeError,
			Message: "Payment failed. Go back to review and submit again to retry.",
			Err:     domain.ErrPaymentFailed,
		}))
	case poller.EventExpired:
		after = append(after, w.setNoticeLocked(Notice{
			Level:   NoticeError,
			Message: "The transaction expired. Go back to review and submit again.",
			Err:     domain.ErrTransactionExpired,
		}))
	case poller.EventError:
		after = append(after, w.setNoticeLocked(Notice{Level: NoticeWarn, Message: "Could not refresh payment status.", Err: e.Err}))
	case poller.EventStopped:
		if e.Err != nil && !errors.Is(e.Err, context.Canceled) {
			after = append(after, w.setNoticeLocked(Notice{Level: NoticeError, Message: "Stopped checking payment status.", Err: e.Err}))
		}
	}
	onEvent := w.cfg.OnEvent
	w.mu.Unlock()

	if status != prev {
		w.record(w.ctx, txID, status, selected)
	}
	for _, fn := range after {
		fn()
	}
	if onEvent != nil {
		onEvent(e)
	}
}

func ptr[T any](v T) *T { return &v }
