package domain

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Sentinel errors for order and payment classification. Callers wrap these
// so commands can handle error categories uniformly.
//
//	return fmt.Errorf("failed to read transaction: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the backend throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates the backend refused the request because of a
	// state conflict, such as a reused idempotency key.
	ErrConflict = errors.New("conflict")

	// ErrRemote is any other non-success response from the backend.
	ErrRemote = errors.New("remote error")

	// ErrInvalidAmount aborts a payment attempt whose computed charge is
	// not positive.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrPaymentFailed indicates the transaction was observed as failed.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrTransactionExpired indicates the transaction deadline passed.
	ErrTransactionExpired = errors.New("transaction expired")

	// ErrStageBlocked indicates a forward stage transition whose guard
	// did not hold.
	ErrStageBlocked = errors.New("stage transition blocked")

	// ErrNoTransaction indicates a payment action without a transaction.
	ErrNoTransaction = errors.New("no transaction")

	// ErrBundleLocked indicates an edit to bundles that were already
	// submitted as an order.
	ErrBundleLocked = errors.New("bundles are locked after submission")
)

// FieldErrors maps a field path such as "instances.0.count" to the messages
// reported for it. Local and remote validation share this shape.
type FieldErrors map[string][]string

// Add appends a message for path.
func (f FieldErrors) Add(path, msg string) {
	f[path] = append(f[path], msg)
}

// Merge appends every message of other into f.
func (f FieldErrors) Merge(other FieldErrors) {
	for path, msgs := range other {
		f[path] = append(f[path], msgs...)
	}
}

// Empty reports whether no field carries a message.
func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// Paths returns the field paths in sorted order.
func (f FieldErrors) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ForBundle returns the errors of the bundle at index with the
// "instances.<index>." prefix removed.
func (f FieldErrors) ForBundle(index int) FieldErrors {
	prefix := BundlePath(index, "")
	out := FieldErrors{}
	for path, msgs := range f {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			out[rest] = append(out[rest], msgs...)
		}
	}
	return out
}

// String renders one "path: message" line per message.
func (f FieldErrors) String() string {
	var b strings.Builder
	for _, p := range f.Paths() {
		for _, msg := range f[p] {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(p)
			b.WriteString(": ")
			b.WriteString(msg)
		}
	}
	return b.String()
}

// BundlePath builds the "instances.<index>.<field>" key used for field errors.
func BundlePath(index int, field string) string {
	return "instances." + strconv.Itoa(index) + "." + field
}

// ValidationError carries field-scoped validation failures. Remote is set
// when the errors came from a pricing or submission response.
type ValidationError struct {
	Fields  FieldErrors
	Message string
	Remote  bool
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if e.Fields.Empty() {
		return msg
	}
	return msg + "\n" + e.Fields.String()
}
