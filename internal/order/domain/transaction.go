package domain

import "time"

// TransactionStatus is the server-owned state of a payment transaction.
type TransactionStatus string

const (
	StatusPending         TransactionStatus = "pending"
	StatusProcessing      TransactionStatus = "processing"
	StatusTransferPending TransactionStatus = "transfer_pending"
	StatusCompleted       TransactionStatus = "completed"
	StatusFailed          TransactionStatus = "failed"
	StatusExpired         TransactionStatus = "expired"
)

// IsTerminal reports whether no further transition is expected.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// Pollable reports whether a poller may be started for a transaction in
// this status.
func (s TransactionStatus) Pollable() bool {
	return s == StatusPending || s == StatusTransferPending
}

// rank orders the non-terminal statuses. Terminal statuses are handled
// separately in CanTransition.
var rank = map[TransactionStatus]int{
	StatusPending:         0,
	StatusProcessing:      1,
	StatusTransferPending: 1,
}

// CanTransition reports whether moving from one status to another respects
// the monotonic lifecycle pending -> {processing|transfer_pending} ->
// {completed|failed}. Expiry may happen from any non-terminal status.
// Terminal statuses never transition.
func CanTransition(from, to TransactionStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	if to.IsTerminal() {
		return true
	}
	fr, okFrom := rank[from]
	tr, okTo := rank[to]
	if !okFrom || !okTo {
		return false
	}
	return tr > fr
}

// InstanceStub is a provisioned (or provisioning) instance returned with an
// order.
type InstanceStub struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// LineItem is one priced entry of an order.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// OrderSummary is the order metadata attached to a transaction.
type OrderSummary struct {
	ID        string     `json:"id,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty"`
	Discount  float64    `json:"discount,omitempty"`
	Tax       float64    `json:"tax,omitempty"`
	Total     float64    `json:"total,omitempty"`
	Currency  string     `json:"currency,omitempty"`
}

// Transaction is the server-owned payment record created by an order
// submission that requires payment. The local workflow only observes it.
type Transaction struct {
	ID             string                 `json:"id"`
	Reference      string                 `json:"reference,omitempty"`
	Amount         float64                `json:"amount"`
	Currency       string                 `json:"currency"`
	Status         TransactionStatus      `json:"status"`
	ExpiresAt      time.Time              `json:"expires_at,omitzero"`
	GatewayOptions []PaymentGatewayOption `json:"payment_gateway_options,omitempty"`
	Instances      []InstanceStub         `json:"instances,omitempty"`
	Order          OrderSummary           `json:"order"`
}

// Clone returns a copy that shares no slices with t.
func (t Transaction) Clone() Transaction {
	c := t
	c.GatewayOptions = append([]PaymentGatewayOption(nil), t.GatewayOptions...)
	c.Instances = append([]InstanceStub(nil), t.Instances...)
	c.Order.LineItems = append([]LineItem(nil), t.Order.LineItems...)
	return c
}

// Remaining returns the time left before ExpiresAt relative to now. It
// returns -1 when the transaction carries no expiry.
func (t Transaction) Remaining(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() {
		return -1
	}
	d := t.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// SubmissionOutcome is how an order submission response is interpreted.
type SubmissionOutcome string

const (
	OutcomeProvisioningStarted SubmissionOutcome = "provisioning_started"
	OutcomePaymentRequired     SubmissionOutcome = "payment_required"
)

// SubmissionResult is the interpreted response of an order submission.
type SubmissionResult struct {
	Outcome        SubmissionOutcome `json:"outcome"`
	IdempotencyKey string            `json:"idempotency_key"`
	Message        string            `json:"message,omitempty"`

	// Transaction is set when Outcome is OutcomePaymentRequired.
	Transaction *Transaction `json:"transaction,omitempty"`

	// Instances are the instance stubs created by the order.
	Instances []InstanceStub `json:"instances,omitempty"`
}

// PaymentRequired reports whether the workflow must move to the Payment stage.
func (r SubmissionResult) PaymentRequired() bool {
	return r.Outcome == OutcomePaymentRequired && r.Transaction != nil
}

// StatusReport is the result of one transaction status read. Fields other
// than Status are zero when the backend omits them.
type StatusReport struct {
	TransactionID  string                 `json:"transaction_id"`
	Status         TransactionStatus      `json:"status"`
	Amount         float64                `json:"amount,omitempty"`
	Currency       string                 `json:"currency,omitempty"`
	ExpiresAt      time.Time              `json:"expires_at,omitzero"`
	GatewayOptions []PaymentGatewayOption `json:"payment_gateway_options,omitempty"`
}
