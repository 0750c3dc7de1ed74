package poller

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// Until polls tx until it finishes and returns the final snapshot. A
// completed transaction returns a nil error; failure, expiry and a stopped
// loop are reported as errors wrapping domain.ErrPaymentFailed,
// domain.ErrTransactionExpired or the cause of the stop.
func Until(ctx context.Context, reader StatusReader, tx domain.Transaction, opts ...Option) (Snapshot, error) {
	p := New(reader, tx, opts...)
	if err := p.Start(ctx); err != nil {
		return p.Snapshot(), err
	}
	p.Wait()

	snap := p.Snapshot()
	switch snap.State {
	case StateCompleted:
		return snap, nil
	case StateFailed:
		return snap, fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrPaymentFailed)
	case StateExpired:
		return snap, fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrTransactionExpired)
	default:
		if snap.LastError != nil {
			return snap, fmt.Errorf("transaction %s: polling stopped: %w", tx.ID, snap.LastError)
		}
		return snap, fmt.Errorf("transaction %s: polling stopped", tx.ID)
	}
}
