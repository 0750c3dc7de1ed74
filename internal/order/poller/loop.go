package poller

import (
	"context"
	"errors"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/clock"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

type readResult struct {
	report domain.StatusReport
	err    error
}

// run is the poller's event loop. It owns every state change.
func (p *Poller) run(ctx context.Context, poll, countdown *clock.Ticker) {
	defer close(p.done)
	defer p.Stop()
	defer poll.Stop()

	var countdownC <-chan time.Time
	stopCountdown := func() {
		if countdown != nil {
			countdown.Stop()
			countdown = nil
			countdownC = nil
		}
	}
	defer stopCountdown()
	if countdown != nil {
		countdownC = countdown.C
		if p.tickCountdown() {
			return
		}
	}

	// results has room for the single read that may be in flight, so a
	// read finishing after the loop exits never blocks.
	results := make(chan readResult, 1)
	inFlight := false

	startRead := func() {
		inFlight = true
		id := p.snap.TransactionID
		go func() {
			report, err := p.reader.TransactionStatus(ctx, id)
			results <- readResult{report: report, err: err}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			p.finish(StateStopped, ctx.Err())
			return

		case <-poll.C:
			if inFlight {
				p.recordSkip()
				continue
			}
			if p.expiredAt(p.clock.Now()) {
				if p.tickCountdown() {
					return
				}
				continue
			}
			startRead()

		case <-p.checkNow:
			if inFlight {
				continue
			}
			if p.expiredAt(p.clock.Now()) {
				if p.tickCountdown() {
					return
				}
				continue
			}
			startRead()

		case <-countdownC:
			if p.tickCountdown() {
				return
			}

		case <-p.transfer:
			p.enterTransferPending()

		case res := <-results:
			inFlight = false
			if ctx.Err() != nil {
				p.finish(StateStopped, ctx.Err())
				return
			}
			if p.apply(res) {
				return
			}
			// A server-supplied deadline can appear after Start.
			if countdown == nil && p.hasExpiry() {
				countdown = p.clock.NewTicker(p.step)
				countdownC = countdown.C
			}
		}
	}
}

func (p *Poller) hasExpiry() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.snap.ExpiresAt.IsZero()
}

// expiredAt reports whether the deadline has passed at now. A poll tick
// landing on the deadline must not start a read.
func (p *Poller) expiredAt(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return remaining(p.snap.ExpiresAt, now) == 0
}

func (p *Poller) emit(e Event) {
	e.TransactionID = p.snap.TransactionID
	if p.listener != nil {
		p.listener(e)
	}
}

func (p *Poller) recordSkip() {
	p.mu.Lock()
	p.snap.SkippedTicks++
	status := p.snap.Status
	p.mu.Unlock()
	p.logger.Debug("status read in flight, tick dropped", "transaction_id", p.snap.TransactionID)
	p.emit(Event{Kind: EventTickSkipped, Status: status})
}

// tickCountdown recomputes the remaining time and expires the transaction
// locally once it reaches zero. It reports whether the loop must exit.
func (p *Poller) tickCountdown() bool {
	now := p.clock.Now()

	p.mu.Lock()
	left := remaining(p.snap.ExpiresAt, now)
	p.snap.Remaining = left
	status := p.snap.Status
	p.mu.Unlock()

	p.emit(Event{Kind: EventCountdown, Status: status, Remaining: left})
	if left != 0 {
		return false
	}

	p.logger.Info("transaction expired", "transaction_id", p.snap.TransactionID)
	p.setStatus(domain.StatusExpired)
	p.finish(StateExpired, nil)
	p.emit(Event{Kind: EventExpired, Status: domain.StatusExpired, Previous: status, Err: domain.ErrTransactionExpired})
	return true
}

func (p *Poller) enterTransferPending() {
	p.mu.Lock()
	prev := p.snap.Status
	if prev != domain.StatusPending {
		p.mu.Unlock()
		return
	}
	p.snap.Status = domain.StatusTransferPending
	p.mu.Unlock()

	p.logger.Info("awaiting bank transfer", "transaction_id", p.snap.TransactionID)
	p.emit(Event{Kind: EventStatus, Status: domain.StatusTransferPending, Previous: prev})
}

func (p *Poller) setStatus(s domain.TransactionStatus) {
	p.mu.Lock()
	p.snap.Status = s
	p.mu.Unlock()
}

// apply folds one read into the state. It reports whether the loop must
// exit.
func (p *Poller) apply(res readResult) bool {
	now := p.clock.Now()

	if res.err != nil {
		p.mu.Lock()
		p.snap.LastError = res.err
		status := p.snap.Status
		p.mu.Unlock()

		if errors.Is(res.err, domain.ErrUnauthorized) {
			p.logger.Warn("status read rejected, polling stopped", "transaction_id", p.snap.TransactionID, "error", res.err)
			p.emit(Event{Kind: EventError, Status: status, Err: res.err})
			p.finish(StateStopped, res.err)
			return true
		}
		p.logger.Warn("status read failed", "transaction_id", p.snap.TransactionID, "error", res.err)
		p.emit(Event{Kind: EventError, Status: status, Err: res.err})
		return false
	}

	report := res.report
	p.mu.Lock()
	prev := p.snap.Status
	p.snap.Reads++
	p.snap.LastRead = now
	p.snap.LastError = nil
	if !report.ExpiresAt.IsZero() {
		p.snap.ExpiresAt = report.ExpiresAt
		p.snap.Remaining = remaining(report.ExpiresAt, now)
	}
	next := prev
	if domain.CanTransition(prev, report.Status) {
		next = report.Status
	}
	p.snap.Status = next
	p.mu.Unlock()

	if next != report.Status {
		p.logger.Debug("ignoring status regression", "transaction_id", p.snap.TransactionID, "current", prev, "reported", report.Status)
	} else if next != prev {
		p.logger.Info("transaction status changed", "transaction_id", p.snap.TransactionID, "from", prev, "to", next)
	}

	p.emit(Event{Kind: EventStatus, Status: next, Previous: prev, Report: &report})

	switch next {
	case domain.StatusCompleted:
		p.mu.Lock()
		first := !p.signaled
		p.signaled = true
		p.mu.Unlock()
		p.finish(StateCompleted, nil)
		if first {
			p.emit(Event{Kind: EventCompleted, Status: next, Previous: prev, Report: &report})
		}
		return true
	case domain.StatusFailed:
		p.finish(StateFailed, nil)
		p.emit(Event{Kind: EventFailed, Status: next, Previous: prev, Report: &report, Err: domain.ErrPaymentFailed})
		return true
	case domain.StatusExpired:
		p.finish(StateExpired, nil)
		p.emit(Event{Kind: EventExpired, Status: next, Previous: prev, Report: &report, Err: domain.ErrTransactionExpired})
		return true
	}
	return false
}

// finish records the final state before the terminal event is emitted, so
// listeners see it in Snapshot. A stop without a terminal status emits
// EventStopped.
func (p *Poller) finish(state State, err error) {
	p.mu.Lock()
	if p.snap.State.Terminal() {
		p.mu.Unlock()
		return
	}
	p.snap.State = state
	if err != nil {
		p.snap.LastError = err
	}
	status := p.snap.Status
	p.mu.Unlock()

	if state == StateStopped {
		p.emit(Event{Kind: EventStopped, Status: status, Err: err})
	}
}
