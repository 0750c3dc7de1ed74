package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/clock"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Test helpers ---

// recorder collects events and forwards them to a channel for waiting.
type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 256)}
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// waitFor blocks until an event of kind arrives, skipping others.
func (r *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

// scriptedReader returns the scripted statuses in order, repeating the last.
type scriptedReader struct {
	mu       sync.Mutex
	statuses []domain.TransactionStatus
	errs     map[int]error
	calls    int
}

func (s *scriptedReader) TransactionStatus(_ context.Context, id string) (domain.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if err, ok := s.errs[i]; ok {
		return domain.StatusReport{}, err
	}
	if i >= len(s.statuses) {
		i = len(s.statuses) - 1
	}
	return domain.StatusReport{TransactionID: id, Status: s.statuses[i]}, nil
}

func (s *scriptedReader) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func pendingTx() domain.Transaction {
	return domain.Transaction{ID: "tx-1", Amount: 10000, Currency: "NGN", Status: domain.StatusPending}
}

func startPoller(t *testing.T, reader StatusReader, tx domain.Transaction, clk *clock.FakeClock) (*Poller, *recorder) {
	t.Helper()
	rec := newRecorder()
	p := New(reader, tx, WithClock(clk), WithListener(rec.listen), WithLogger(quietLogger()))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		p.Stop()
		p.Wait()
	})
	return p, rec
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

// --- Scenarios ---

func TestPoller_CompletesOnTenthTick(t *testing.T) {
	statuses := make([]domain.TransactionStatus, 0, 10)
	for range 9 {
		statuses = append(statuses, domain.StatusPending)
	}
	statuses = append(statuses, domain.StatusCompleted)
	reader := &scriptedReader{statuses: statuses}

	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	for range 10 {
		clk.Advance(DefaultInterval)
		rec.waitFor(t, EventStatus)
	}
	waitDone(t, p)

	if got := rec.count(EventCompleted); got != 1 {
		t.Errorf("completed signals = %d, want 1", got)
	}
	if reader.Calls() != 10 {
		t.Errorf("reads = %d, want 10", reader.Calls())
	}

	// Further ticks and manual checks must not read or re-signal.
	clk.Advance(DefaultInterval)
	p.CheckNow()
	time.Sleep(20 * time.Millisecond)
	if reader.Calls() != 10 {
		t.Errorf("reads after completion = %d, want 10", reader.Calls())
	}
	if got := rec.count(EventCompleted); got != 1 {
		t.Errorf("completed signals after completion = %d, want 1", got)
	}

	snap := p.Snapshot()
	if snap.State != StateCompleted || snap.Status != domain.StatusCompleted || snap.Reads != 10 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestPoller_ExpiresBeforeFirstPoll(t *testing.T) {
	reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusPending}}
	tx := pendingTx()
	tx.ExpiresAt = t0.Add(5 * time.Second)

	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, tx, clk)

	first := rec.waitFor(t, EventCountdown)
	if first.Remaining != 5*time.Second {
		t.Errorf("initial remaining = %v, want 5s", first.Remaining)
	}

	for i := 1; i <= 4; i++ {
		clk.Advance(time.Second)
		e := rec.waitFor(t, EventCountdown)
		if want := time.Duration(5-i) * time.Second; e.Remaining != want {
			t.Errorf("tick %d remaining = %v, want %v", i, e.Remaining, want)
		}
	}
	clk.Advance(time.Second)
	e := rec.waitFor(t, EventExpired)
	if !errors.Is(e.Err, domain.ErrTransactionExpired) {
		t.Errorf("expired event error = %v", e.Err)
	}
	waitDone(t, p)

	if reader.Calls() != 0 {
		t.Errorf("reads = %d, want 0", reader.Calls())
	}
	snap := p.Snapshot()
	if snap.State != StateExpired || snap.Status != domain.StatusExpired {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	// The 10s poll must never fire after expiry.
	clk.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if reader.Calls() != 0 {
		t.Errorf("reads after expiry = %d, want 0", reader.Calls())
	}
}

func TestPoller_NoReadWhenPollTickMeetsExpiry(t *testing.T) {
	// Both tickers fire on the same instant; select order is random, so
	// repeat to cover either branch.
	for range 20 {
		reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusPending}}
		tx := pendingTx()
		tx.ExpiresAt = t0.Add(DefaultInterval)

		clk := clock.Fake(t0)
		p, rec := startPoller(t, reader, tx, clk)
		rec.waitFor(t, EventCountdown)

		for i := 1; i < int(DefaultInterval/time.Second); i++ {
			clk.Advance(time.Second)
			rec.waitFor(t, EventCountdown)
		}
		clk.Advance(time.Second)
		rec.waitFor(t, EventExpired)
		waitDone(t, p)

		if reader.Calls() != 0 {
			t.Fatalf("reads = %d, want 0", reader.Calls())
		}
		if got := p.Snapshot().State; got != StateExpired {
			t.Fatalf("state = %s, want expired", got)
		}
	}
}

// blockingReader holds every read until released and tracks overlap.
type blockingReader struct {
	started  chan struct{}
	release  chan domain.TransactionStatus
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func newBlockingReader() *blockingReader {
	return &blockingReader{
		started: make(chan struct{}, 16),
		release: make(chan domain.TransactionStatus),
	}
}

func (b *blockingReader) TransactionStatus(ctx context.Context, id string) (domain.StatusReport, error) {
	b.calls.Add(1)
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		cur := b.maxSeen.Load()
		if n <= cur || b.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	b.started <- struct{}{}
	select {
	case s := <-b.release:
		return domain.StatusReport{TransactionID: id, Status: s}, nil
	case <-ctx.Done():
		return domain.StatusReport{}, ctx.Err()
	}
}

func TestPoller_DropsTicksWhileReadInFlight(t *testing.T) {
	reader := newBlockingReader()
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	clk.Advance(DefaultInterval)
	<-reader.started

	clk.Advance(DefaultInterval)
	rec.waitFor(t, EventTickSkipped)
	p.CheckNow()
	clk.Advance(DefaultInterval)
	rec.waitFor(t, EventTickSkipped)

	reader.release <- domain.StatusPending
	rec.waitFor(t, EventStatus)

	if got := reader.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent reads = %d, want 1", got)
	}
	if got := p.Snapshot().SkippedTicks; got != 2 {
		t.Errorf("skipped ticks = %d, want 2", got)
	}

	// The manual check issued during the read was coalesced into it.
	time.Sleep(20 * time.Millisecond)
	if got := reader.calls.Load(); got != 1 {
		t.Errorf("reads = %d, want 1", got)
	}
}

func TestPoller_CheckNowIsIdempotentAfterCompletion(t *testing.T) {
	reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusCompleted}}
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	p.CheckNow()
	rec.waitFor(t, EventCompleted)
	waitDone(t, p)

	for range 3 {
		p.CheckNow()
	}
	clk.Advance(DefaultInterval)
	time.Sleep(20 * time.Millisecond)

	if reader.Calls() != 1 {
		t.Errorf("reads = %d, want 1", reader.Calls())
	}
	if got := rec.count(EventCompleted); got != 1 {
		t.Errorf("completed signals = %d, want 1", got)
	}
}

func TestPoller_FailedStops(t *testing.T) {
	reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusProcessing, domain.StatusFailed}}
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	clk.Advance(DefaultInterval)
	e := rec.waitFor(t, EventStatus)
	if e.Status != domain.StatusProcessing || e.Previous != domain.StatusPending {
		t.Errorf("first status event = %+v", e)
	}

	clk.Advance(DefaultInterval)
	failed := rec.waitFor(t, EventFailed)
	if !errors.Is(failed.Err, domain.ErrPaymentFailed) {
		t.Errorf("failed event error = %v", failed.Err)
	}
	waitDone(t, p)
	if p.Snapshot().State != StateFailed {
		t.Errorf("state = %s, want failed", p.Snapshot().State)
	}
}

func TestPoller_TransferPending(t *testing.T) {
	reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted}}
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	p.MarkTransferPending()
	e := rec.waitFor(t, EventStatus)
	if e.Status != domain.StatusTransferPending {
		t.Fatalf("status = %s, want transfer_pending", e.Status)
	}

	// A lagging server read of pending must not undo the local choice.
	clk.Advance(DefaultInterval)
	e = rec.waitFor(t, EventStatus)
	if e.Status != domain.StatusTransferPending {
		t.Errorf("status after lagging read = %s, want transfer_pending", e.Status)
	}

	clk.Advance(DefaultInterval)
	rec.waitFor(t, EventCompleted)
	waitDone(t, p)
}

func TestPoller_TransientErrorsKeepPolling(t *testing.T) {
	reader := &scriptedReader{
		statuses: []domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted},
		errs:     map[int]error{0: errors.New("connection reset")},
	}
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	clk.Advance(DefaultInterval)
	e := rec.waitFor(t, EventError)
	if e.Err == nil {
		t.Error("expected error on event")
	}
	if p.Snapshot().State != StatePolling {
		t.Errorf("state = %s, want polling", p.Snapshot().State)
	}

	clk.Advance(DefaultInterval)
	rec.waitFor(t, EventStatus)
	clk.Advance(DefaultInterval)
	rec.waitFor(t, EventCompleted)
	waitDone(t, p)
	if p.Snapshot().LastError != nil {
		t.Errorf("LastError = %v, want nil after successful read", p.Snapshot().LastError)
	}
}

func TestPoller_UnauthorizedStops(t *testing.T) {
	reader := &scriptedReader{
		statuses: []domain.TransactionStatus{domain.StatusPending},
		errs:     map[int]error{0: domain.ErrUnauthorized},
	}
	clk := clock.Fake(t0)
	p, rec := startPoller(t, reader, pendingTx(), clk)

	clk.Advance(DefaultInterval)
	e := rec.waitFor(t, EventStopped)
	if !errors.Is(e.Err, domain.ErrUnauthorized) {
		t.Errorf("stopped event error = %v", e.Err)
	}
	waitDone(t, p)
	if p.Snapshot().State != StateStopped {
		t.Errorf("state = %s, want stopped", p.Snapshot().State)
	}
}

func TestPoller_StopCancelsTimers(t *testing.T) {
	tx := pendingTx()
	tx.ExpiresAt = t0.Add(time.Hour)
	clk := clock.Fake(t0)
	reader := &scriptedReader{statuses: []domain.TransactionStatus{domain.StatusPending}}
	p, rec := startPoller(t, reader, tx, clk)

	if got := clk.ActiveTickers(); got != 2 {
		t.Fatalf("active tickers = %d, want 2", got)
	}
	p.Stop()
	rec.waitFor(t, EventStopped)
	waitDone(t, p)

	if got := clk.ActiveTickers(); got != 0 {
		t.Errorf("active tickers after Stop = %d, want 0", got)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("expected error restarting a stopped poller")
	}
}

func TestPoller_StartRequiresPollableStatus(t *testing.T) {
	tx := pendingTx()
	tx.Status = domain.StatusProcessing
	p := New(&scriptedReader{}, tx, WithLogger(quietLogger()))
	if err := p.Start(context.Background()); !errors.Is(err, ErrNotPollable) {
		t.Errorf("Start = %v, want ErrNotPollable", err)
	}
	if p.Snapshot().State != StateIdle {
		t.Errorf("state = %s, want idle", p.Snapshot().State)
	}
}

func TestUntil(t *testing.T) {
	tests := []struct {
		status  domain.TransactionStatus
		wantErr error
	}{
		{domain.StatusCompleted, nil},
		{domain.StatusFailed, domain.ErrPaymentFailed},
		{domain.StatusExpired, domain.ErrTransactionExpired},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			reader := StatusReaderFunc(func(_ context.Context, id string) (domain.StatusReport, error) {
				return domain.StatusReport{TransactionID: id, Status: tt.status}, nil
			})
			snap, err := Until(context.Background(), reader, pendingTx(), WithInterval(time.Millisecond), WithLogger(quietLogger()))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Until: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Until error = %v, want %v", err, tt.wantErr)
			}
			if snap.Status != tt.status {
				t.Errorf("final status = %s, want %s", snap.Status, tt.status)
			}
		})
	}
}
