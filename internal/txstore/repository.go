// Package txstore provides persistent storage for payment transactions.
//
// When an order submission requires payment, the CLI records the
// transaction locally so that if the process is interrupted (Ctrl+C,
// crash, closed terminal) the payment can be watched again on the next
// invocation with `vpsorder order resume` or `vpsorder order watch`.
//
// Storage is backed by the shared SQLite database at
// ~/.config/vpsorder/vpsorder.db (see package database).
package txstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/database"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// Repository defines the persistence interface for transaction records.
type Repository interface {
	// Save inserts or updates a record. On insert (ID == 0), an ID is
	// assigned to the record.
	Save(record *TransactionRecord) error

	// GetByTransactionID returns the record for a server transaction ID,
	// or nil when none exists.
	GetByTransactionID(transactionID string) (*TransactionRecord, error)

	// ListPending returns records that are not terminal and not past
	// their deadline, newest first.
	ListPending() ([]TransactionRecord, error)

	// ListRecent returns the most recent n records regardless of status,
	// newest first.
	ListRecent(n int) ([]TransactionRecord, error)

	// DeleteOlderThan removes terminal records last updated more than d
	// ago. Returns the number of records removed.
	DeleteOlderThan(d time.Duration) (int64, error)

	// Close releases database resources.
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the transaction repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("txstore: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
// The parent directory is created if it does not exist.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("txstore: %w", err)
	}

	r := &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

// migrate creates the transactions table if it doesn't exist.
func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS transactions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id  TEXT    NOT NULL UNIQUE,
			idempotency_key TEXT    NOT NULL DEFAULT '',
			amount          REAL    NOT NULL DEFAULT 0,
			currency        TEXT    NOT NULL DEFAULT '',
			status          TEXT    NOT NULL DEFAULT 'pending',
			expires_at      TEXT    NOT NULL DEFAULT '',
			gateway         TEXT    NOT NULL DEFAULT '',
			created_at      TEXT    NOT NULL,
			updated_at      TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("txstore: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new record (ID == 0) or updates an existing one.
func (r *SQLiteRepository) Save(record *TransactionRecord) error {
	if record.TransactionID == "" {
		return errors.New("txstore: transaction ID is required")
	}
	if record.Status == "" {
		record.Status = domain.StatusPending
	}
	record.UpdatedAt = r.now()

	if record.ID == 0 {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = record.UpdatedAt
		}
		result, err := r.db.Exec(`
			INSERT INTO transactions (transaction_id, idempotency_key, amount, currency, status, expires_at, gateway, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.TransactionID, record.IdempotencyKey, record.Amount, record.Currency, string(record.Status),
			formatTime(record.ExpiresAt), record.Gateway,
			formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("txstore: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("txstore: failed to get last insert ID: %w", err)
		}
		record.ID = id
		return nil
	}

	result, err := r.db.Exec(`
		UPDATE transactions SET transaction_id=?, idempotency_key=?, amount=?, currency=?,
		       status=?, expires_at=?, gateway=?, updated_at=?
		WHERE id=?`,
		record.TransactionID, record.IdempotencyKey, record.Amount, record.Currency,
		string(record.Status), formatTime(record.ExpiresAt), record.Gateway,
		formatTime(record.UpdatedAt), record.ID,
	)
	if err != nil {
		return fmt.Errorf("txstore: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("txstore: record %d: %w", record.ID, domain.ErrNotFound)
	}
	return nil
}

const selectColumns = `
	SELECT id, transaction_id, idempotency_key, amount, currency, status,
	       expires_at, gateway, created_at, updated_at
	FROM transactions`

// GetByTransactionID retrieves a record by its server transaction ID.
func (r *SQLiteRepository) GetByTransactionID(transactionID string) (*TransactionRecord, error) {
	row := r.db.QueryRow(selectColumns+` WHERE transaction_id = ?`, transactionID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txstore: query failed: %w", err)
	}
	return record, nil
}

// ListPending returns records still awaiting payment.
func (r *SQLiteRepository) ListPending() ([]TransactionRecord, error) {
	rows, err := r.db.Query(selectColumns+`
		WHERE status IN (?, ?, ?) AND (expires_at = '' OR expires_at > ?)
		ORDER BY created_at DESC, id DESC`,
		string(domain.StatusPending), string(domain.StatusProcessing), string(domain.StatusTransferPending),
		formatTime(r.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("txstore: query failed: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListRecent returns the most recent n records.
func (r *SQLiteRepository) ListRecent(n int) ([]TransactionRecord, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("txstore: query failed: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteOlderThan removes terminal records older than d.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := formatTime(r.now().Add(-d))
	result, err := r.db.Exec(`
		DELETE FROM transactions
		WHERE status IN (?, ?, ?) AND updated_at < ?`,
		string(domain.StatusCompleted), string(domain.StatusFailed), string(domain.StatusExpired), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("txstore: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Timestamps are stored as fixed-width UTC strings so that SQL string
// comparison orders them chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*TransactionRecord, error) {
	var record TransactionRecord
	var status, expiresStr, createdStr, updatedStr string
	err := row.Scan(
		&record.ID, &record.TransactionID, &record.IdempotencyKey, &record.Amount, &record.Currency,
		&status, &expiresStr, &record.Gateway, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}
	record.Status = domain.TransactionStatus(status)
	record.ExpiresAt = parseTime(expiresStr)
	record.CreatedAt = parseTime(createdStr)
	record.UpdatedAt = parseTime(updatedStr)
	return &record, nil
}

func scanRecords(rows *sql.Rows) ([]TransactionRecord, error) {
	var records []TransactionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("txstore: scan failed: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
