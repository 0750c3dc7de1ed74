package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/api"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
)

// Preview validates the bundles and requests a price quote. Invalid
// bundles return a *domain.ValidationError without calling the backend.
// On any failure the previous preview is kept.
func (w *Workflow) Preview(ctx context.Context) (*domain.PricingPreview, error) {
	w.mu.Lock()
	if errs := w.validateLocked(); !errs.Empty() {
		w.mu.Unlock()
		return nil, &domain.ValidationError{Fields: errs}
	}
	bundles := domain.CloneBundles(w.bundles)
	fastTrack := w.fastTrack
	assignment := w.assignment
	hash := w.fingerprintLocked()
	w.mu.Unlock()

	preview, err := w.api.Preview(ctx, bundles, fastTrack, assignment)

	w.mu.Lock()
	if err != nil {
		deliver := w.failLocked("Pricing preview failed.", err)
		w.mu.Unlock()
		deliver()
		return nil, err
	}
	w.preview = preview
	w.previewHash = hash
	w.mu.Unlock()

	w.logger.Debug("pricing preview updated", "bundles", len(preview.Bundles), "grand_total", preview.GrandTotal)
	out := *preview
	return &out, nil
}

// CurrentPreview returns the last quote. fresh is false once any input to
// the quote changed after it was fetched.
func (w *Workflow) CurrentPreview() (preview *domain.PricingPreview, fresh bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.preview == nil {
		return nil, false
	}
	out := *w.preview
	return &out, w.previewHash != 0 && w.previewHash == w.fingerprintLocked()
}

// failLocked routes err to the right place: field errors are merged into
// the inline error map, anything else becomes a notice.
func (w *Workflow) failLocked(msg string, err error) func() {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		w.fieldErrs.Merge(ve.Fields)
		if ve.Fields.Empty() {
			return w.setNoticeLocked(Notice{Level: NoticeError, Message: msg, Err: err})
		}
		return func() {}
	}
	return w.setNoticeLocked(Notice{Level: NoticeError, Message: msg, Err: err})
}

// Submit sends the order from the Review stage with a fresh idempotency
// key. A response that requires payment replaces any current transaction,
// stops its poller, moves to the Payment stage and starts polling the new
// one. Otherwise the order is handed off to provisioning and any earlier
// transaction is dropped.
func (w *Workflow) Submit(ctx context.Context) (*domain.SubmissionResult, error) {
	w.mu.Lock()
	if w.stage != StageReview {
		stage := w.stage
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: orders are submitted from the review stage, not %s", domain.ErrStageBlocked, stage)
	}
	if errs := w.validateLocked(); !errs.Empty() {
		w.mu.Unlock()
		return nil, &domain.ValidationError{Fields: errs}
	}
	req := api.SubmitRequest{
		Bundles:        domain.CloneBundles(w.bundles),
		FastTrack:      w.fastTrack,
		Assignment:     w.assignment,
		Tags:           append([]string(nil), w.tags...),
		IdempotencyKey: api.NewIdempotencyKey(),
	}
	w.mu.Unlock()

	res, err := w.api.Submit(ctx, req)
	if err != nil {
		w.mu.Lock()
		deliver := w.failLocked("Order submission failed.", err)
		w.mu.Unlock()
		deliver()
		return nil, err
	}
	if res.IdempotencyKey == "" {
		res.IdempotencyKey = req.IdempotencyKey
	}

	if !res.PaymentRequired() {
		w.mu.Lock()
		w.locked = true
		w.submission = res
		first := !w.handedOff
		w.handedOff = true
		// The new order supersedes any transaction from an earlier submission.
		old := w.poller
		w.poller = nil
		w.pollerGen++
		w.tx = nil
		w.selection = nil
		w.pollSnap = poller.Snapshot{}
		w.completed = false
		w.mu.Unlock()

		if old != nil {
			old.Stop()
		}

		w.logger.Info("order accepted, provisioning started", "idempotency_key", res.IdempotencyKey, "instances", len(res.Instances))
		if first && w.cfg.OnHandoff != nil {
			w.cfg.OnHandoff(Handoff{Reason: HandoffProvisioningStarted, Submission: res})
		}
		return res, nil
	}

	tx := res.Transaction.Clone()
	if w.recorder != nil {
		if err := w.recorder.RecordTransaction(ctx, tx, res.IdempotencyKey); err != nil {
			w.logger.Warn("failed to record transaction", "transaction_id", tx.ID, "error", err)
		}
	}
	w.logger.Info("order requires payment", "transaction_id", tx.ID, "amount", tx.Amount, "currency", tx.Currency)

	w.mu.Lock()
	w.locked = true
	w.submission = res
	w.handedOff = false
	w.stage = StagePayment
	w.mu.Unlock()

	if err := w.attach(tx); err != nil {
		return res, err
	}
	return res, nil
}

// Attach adopts an existing transaction, as when resuming a payment, and
// moves to the Payment stage. The bundles are locked.
func (w *Workflow) Attach(tx domain.Transaction) error {
	w.mu.Lock()
	w.locked = true
	w.stage = StagePayment
	w.mu.Unlock()
	return w.attach(tx)
}

// attach installs tx as the current transaction and starts its poller.
// The previous poller is stopped; its late events are ignored.
func (w *Workflow) attach(tx domain.Transaction) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("workflow is closed")
	}
	old := w.poller
	w.pollerGen++
	gen := w.pollerGen
	w.tx = &tx
	w.selection = gateway.NewSelection(w.selector, tx.GatewayOptions)
	w.completed = false
	w.notice = nil

	opts := []poller.Option{poller.WithLogger(w.logger)}
	opts = append(opts, w.cfg.PollerOptions...)
	opts = append(opts, poller.WithListener(func(e poller.Event) { w.onPollerEvent(gen, e) }))
	var p *poller.Poller
	if tx.Status.Pollable() {
		p = poller.New(w.api, tx, opts...)
		w.pollSnap = p.Snapshot()
	} else {
		w.pollSnap = finishedSnapshot(tx)
		w.completed = tx.Status == domain.StatusCompleted
	}
	w.poller = p
	w.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if p == nil {
		return nil
	}
	if err := p.Start(w.ctx); err != nil {
		return fmt.Errorf("failed to start polling transaction %s: %w", tx.ID, err)
	}
	return nil
}

// finishedSnapshot describes a transaction that is not polled.
func finishedSnapshot(tx domain.Transaction) poller.Snapshot {
	state := poller.StateIdle
	switch tx.Status {
	case domain.StatusCompleted:
		state = poller.StateCompleted
	case domain.StatusFailed:
		state = poller.StateFailed
	case domain.StatusExpired:
		state = poller.StateExpired
	}
	return poller.Snapshot{
		TransactionID: tx.ID,
		State:         state,
		Status:        tx.Status,
		ExpiresAt:     tx.ExpiresAt,
		Remaining:     tx.Remaining(time.Now()),
	}
}
