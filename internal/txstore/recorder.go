package txstore

import (
	"context"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// Recorder adapts a Repository to the workflow's TransactionRecorder.
type Recorder struct {
	Repo Repository
}

// RecordTransaction stores tx, updating the existing record when the
// transaction was seen before.
func (r Recorder) RecordTransaction(_ context.Context, tx domain.Transaction, idempotencyKey string) error {
	record, err := r.Repo.GetByTransactionID(tx.ID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &TransactionRecord{TransactionID: tx.ID}
	}
	if idempotencyKey != "" {
		record.IdempotencyKey = idempotencyKey
	}
	record.Amount = tx.Amount
	record.Currency = tx.Currency
	record.Status = tx.Status
	if !tx.ExpiresAt.IsZero() {
		record.ExpiresAt = tx.ExpiresAt
	}
	return r.Repo.Save(record)
}

// RecordStatus stores a status change. Regressions are ignored so the
// local record never moves backward.
func (r Recorder) RecordStatus(_ context.Context, transactionID string, status domain.TransactionStatus, gateway string) error {
	record, err := r.Repo.GetByTransactionID(transactionID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &TransactionRecord{TransactionID: transactionID, Status: status}
	}
	if domain.CanTransition(record.Status, status) {
		record.Status = status
	}
	if gateway != "" {
		record.Gateway = gateway
	}
	return r.Repo.Save(record)
}
