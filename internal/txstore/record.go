package txstore

import (
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// TransactionRecord is the local copy of a payment transaction, kept so
// that polling can be resumed after the CLI exits.
type TransactionRecord struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64 `json:"id"`

	// TransactionID is the server-assigned transaction identifier.
	TransactionID string `json:"transaction_id"`

	// IdempotencyKey is the token of the submission that created the
	// transaction.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	Amount   float64                  `json:"amount"`
	Currency string                   `json:"currency"`
	Status   domain.TransactionStatus `json:"status"`

	// ExpiresAt is zero when the server gave no deadline.
	ExpiresAt time.Time `json:"expires_at,omitzero"`

	// Gateway is the last gateway the payer chose, if any.
	Gateway string `json:"gateway,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the deadline has passed at now.
func (r TransactionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Transaction rebuilds the subset of a domain.Transaction the store keeps.
// Gateway options are not stored; the first status read refills them.
func (r TransactionRecord) Transaction() domain.Transaction {
	return domain.Transaction{
		ID:        r.TransactionID,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
	}
}
