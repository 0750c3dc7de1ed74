// Package poller observes a payment transaction until it reaches a terminal
// status or its deadline passes.
//
// A Poller runs a single event loop per transaction. Status reads, the
// expiry countdown, manual refreshes and user-driven transfer selection are
// all serialized through that loop, so at most one status read is ever in
// flight and a tick that arrives during a read is dropped rather than
// queued.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/clock"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

const (
	// DefaultInterval is the delay between scheduled status reads.
	DefaultInterval = 10 * time.Second

	// DefaultCountdownStep is how often the remaining time is recomputed.
	DefaultCountdownStep = time.Second
)

// StatusReader reads the current status of a transaction.
type StatusReader interface {
	TransactionStatus(ctx context.Context, id string) (domain.StatusReport, error)
}

// StatusReaderFunc adapts a function to StatusReader.
type StatusReaderFunc func(ctx context.Context, id string) (domain.StatusReport, error)

// TransactionStatus calls f.
func (f StatusReaderFunc) TransactionStatus(ctx context.Context, id string) (domain.StatusReport, error) {
	return f(ctx, id)
}

// State is the lifecycle of a Poller.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateExpired   State = "expired"

	// StateStopped means the loop ended without a terminal status: it was
	// cancelled or the credentials were rejected.
	StateStopped State = "stopped"
)

// Terminal reports whether the poller has finished.
func (s State) Terminal() bool {
	return s != StateIdle && s != StatePolling
}

// Snapshot is a point-in-time view of a Poller.
type Snapshot struct {
	TransactionID string
	State         State
	Status        domain.TransactionStatus
	ExpiresAt     time.Time

	// Remaining is the time left before expiry, or -1 without a deadline.
	Remaining time.Duration

	Reads        int
	SkippedTicks int
	LastRead     time.Time
	LastError    error
}

// Poller polls one transaction. Create it with New and start it with Start.
type Poller struct {
	reader   StatusReader
	clock    clock.Clock
	interval time.Duration
	step     time.Duration
	listener func(Event)
	logger   *slog.Logger

	checkNow chan struct{}
	transfer chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	snap     Snapshot
	started  bool
	cancel   context.CancelFunc
	signaled bool // completion already reported
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between scheduled reads.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithCountdownStep sets how often the remaining time is recomputed.
func WithCountdownStep(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.step = d
		}
	}
}

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithListener registers fn to receive every event. fn is called from the
// poller's loop goroutine and must not block for long.
func WithListener(fn func(Event)) Option {
	return func(p *Poller) { p.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates an idle Poller for tx.
func New(reader StatusReader, tx domain.Transaction, opts ...Option) *Poller {
	p := &Poller{
		reader:   reader,
		clock:    clock.Real(),
		interval: DefaultInterval,
		step:     DefaultCountdownStep,
		logger:   slog.Default(),
		checkNow: make(chan struct{}, 1),
		transfer: make(chan struct{}, 1),
		done:     make(chan struct{}),
		snap: Snapshot{
			TransactionID: tx.ID,
			State:         StateIdle,
			Status:        tx.Status,
			ExpiresAt:     tx.ExpiresAt,
			Remaining:     -1,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.snap.Remaining = remaining(p.snap.ExpiresAt, p.clock.Now())
	return p
}

// ErrNotPollable is returned by Start for a transaction that is not
// pending or awaiting a transfer.
var ErrNotPollable = errors.New("transaction is not pollable")

// Start launches the loop. It fails when the poller was already started
// or the transaction status is neither pending nor transfer_pending. The
// loop ends when ctx is cancelled, Stop is called, or a terminal status is
// reached.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("poller for transaction %s already started", p.snap.TransactionID)
	}
	if !p.snap.Status.Pollable() {
		status := p.snap.Status
		p.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotPollable, p.snap.TransactionID, status)
	}
	p.started = true
	p.snap.State = StatePolling
	ctx, p.cancel = context.WithCancel(ctx)
	hasExpiry := !p.snap.ExpiresAt.IsZero()
	p.mu.Unlock()

	// Tickers are registered before the loop starts so the first
	// interval is measured from Start.
	poll := p.clock.NewTicker(p.interval)
	var countdown *clock.Ticker
	if hasExpiry {
		countdown = p.clock.NewTicker(p.step)
	}

	p.logger.Info("polling transaction", "transaction_id", p.snap.TransactionID, "interval", p.interval)
	go p.run(ctx, poll, countdown)
	return nil
}

// CheckNow requests an immediate status read outside the normal cadence.
// It is safe to call at any time; it does nothing once the poller has
// finished, and it coalesces with a read already in flight.
func (p *Poller) CheckNow() {
	select {
	case p.checkNow <- struct{}{}:
	default:
	}
}

// MarkTransferPending records that the payer chose to pay by bank
// transfer. A pending transaction moves to transfer_pending locally.
func (p *Poller) MarkTransferPending() {
	select {
	case p.transfer <- struct{}{}:
	default:
	}
}

// Stop cancels the loop without waiting for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when the loop has exited. It is never closed for a
// poller that was not started.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the loop exits.
func (p *Poller) Wait() {
	<-p.done
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// TransactionID returns the ID of the polled transaction.
func (p *Poller) TransactionID() string {
	return p.snap.TransactionID
}

func remaining(expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return -1
	}
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
