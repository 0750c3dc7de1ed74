package auditlog

import "time"

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// AuditEntry represents one recorded command invocation.
type AuditEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Command        string    `json:"command"`
	Args           string    `json:"args,omitempty"`
	ResourceType   string    `json:"resource_type,omitempty"`
	ResourceID     string    `json:"resource_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Gateway        string    `json:"gateway,omitempty"`
	Amount         float64   `json:"amount,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Outcome        string    `json:"outcome"`
	Detail         string    `json:"detail,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
}

// NewEntry builds the entry for a finished command. A non-nil err marks
// the outcome as an error and becomes the detail.
func NewEntry(command string, args []string, meta Metadata, started time.Time, err error) *AuditEntry {
	entry := &AuditEntry{
		Timestamp:      started.UTC(),
		Command:        command,
		Args:           joinArgs(SanitizeArgs(args)),
		ResourceType:   meta.ResourceType,
		ResourceID:     meta.ResourceID,
		IdempotencyKey: meta.IdempotencyKey,
		Gateway:        meta.Gateway,
		Amount:         meta.Amount,
		Currency:       meta.Currency,
		Outcome:        OutcomeSuccess,
		Detail:         meta.Detail,
		DurationMs:     time.Since(started).Milliseconds(),
	}
	if err != nil {
		entry.Outcome = OutcomeError
		entry.Detail = err.Error()
	}
	return entry
}
