package poller

import (
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// EventKind classifies an Event.
type EventKind string

const (
	// EventStatus follows every successful read, and a local move to
	// transfer_pending.
	EventStatus EventKind = "status"

	// EventCountdown carries a recomputed remaining time.
	EventCountdown EventKind = "countdown"

	// EventCompleted is emitted exactly once, when completed is observed.
	EventCompleted EventKind = "completed"

	EventFailed  EventKind = "failed"
	EventExpired EventKind = "expired"

	// EventError reports a read that failed. Polling continues unless
	// the error was an authorization failure.
	EventError EventKind = "error"

	// EventTickSkipped reports a scheduled read dropped because another
	// read was still in flight.
	EventTickSkipped EventKind = "tick_skipped"

	// EventStopped is emitted when the loop ends without a terminal status.
	EventStopped EventKind = "stopped"
)

// Event is a notification from a Poller.
type Event struct {
	Kind          EventKind
	TransactionID string
	Status        domain.TransactionStatus
	Previous      domain.TransactionStatus
	Remaining     time.Duration
	Report        *domain.StatusReport
	Err           error
}
