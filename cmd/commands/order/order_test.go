package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nathanbeddoewebdev/vpsorder/internal/config"
	"nathanbeddoewebdev/vpsorder/internal/database"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
	"nathanbeddoewebdev/vpsorder/internal/services/auth"
	"nathanbeddoewebdev/vpsorder/internal/txstore"

	"github.com/google/go-cmp/cmp"
)

const bundleYAML = `
tags: [billing]
bundles:
  - name: web
    count: 2
    region: lagos-1
    compute_instance_id: "5"
    os_image_id: "9"
    months: 3
    volume_types:
      - volume_type_id: "10"
        storage_size_gb: 50
`

// --- Test helpers ---

// backend is a scripted business API.
type backend struct {
	mu       sync.Mutex
	previews int
	submits  []map[string]any
	keys     []string
	statuses []string // returned in order; the last one repeats
	reads    int
	srv      *httptest.Server
}

func (b *backend) handler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.URL.Path == "/business/instances/preview-pricing":
		b.previews++
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"previews": []any{
				map[string]any{"index": 0, "count": 2, "currency": "NGN", "unit_price": "5000.00", "total_price": "10000.00"},
			},
			"currency":    "NGN",
			"grand_total": "10000.00",
		}})

	case r.URL.Path == "/business/instances/create":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.submits = append(b.submits, body)
		b.keys = append(b.keys, r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"transaction": map[string]any{"id": 981, "amount": "10000.00", "currency": "NGN", "status": "pending"},
			"payment": map[string]any{
				"required":   true,
				"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
				"payment_gateway_options": []any{
					map[string]any{
						"id": "1", "gateway": "paystack", "payment_type": "card",
						"charge_breakdown": map[string]any{
							"base_amount": 10000, "percentage_fee": 150, "flat_fee": 100,
							"total_fees": 250, "grand_total": 10250, "currency": "NGN",
						},
						"transaction_reference": "ref-card",
					},
				},
			},
		}})

	case strings.HasPrefix(r.URL.Path, "/business/transactions/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/business/transactions/"), "/status")
		if len(b.statuses) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Transaction not found."})
			return
		}
		status := b.statuses[min(b.reads, len(b.statuses)-1)]
		b.reads++
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"transaction_id": id, "status": status, "amount": "10000.00", "currency": "NGN",
		}})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// setup points config, storage and credentials at temporary fixtures and
// returns the scripted backend and the transaction store.
func setup(t *testing.T) (*backend, *txstore.SQLiteRepository) {
	t.Helper()
	dir := t.TempDir()

	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	dbPath := filepath.Join(dir, "vpsorder.db")
	database.SetPath(dbPath)
	t.Cleanup(database.ResetPath)

	b := &backend{}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handler))
	t.Cleanup(b.srv.Close)

	t.Setenv(config.EnvAPIURL, b.srv.URL)
	t.Setenv(config.EnvCheckoutURL, "")
	t.Setenv(auth.EnvToken, "test-token")

	store := auth.NewMockStore()
	origTerminal := isTerminal
	storeFactory = func() auth.Store { return store }
	isTerminal = func() bool { return false }
	pollOptions = []poller.Option{poller.WithInterval(10 * time.Millisecond)}
	t.Cleanup(func() {
		storeFactory = auth.DefaultStore
		isTerminal = origTerminal
		pollOptions = nil
	})

	repo, err := txstore.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return b, repo
}

func writeBundleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundles.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execOrder(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func saveRecord(t *testing.T, repo *txstore.SQLiteRepository, id string, status domain.TransactionStatus, expires time.Time) {
	t.Helper()
	err := repo.Save(&txstore.TransactionRecord{
		TransactionID: id,
		Amount:        10000,
		Currency:      "NGN",
		Status:        status,
		ExpiresAt:     expires,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
}

// --- preview ---

func TestPreview_Table(t *testing.T) {
	setup(t)
	path := writeBundleFile(t, bundleYAML)

	stdout, _, err := execOrder(t, "preview", "--file", path)
	if err != nil {
		t.Fatalf("preview error: %v", err)
	}
	for _, want := range []string{"BUNDLE", "web", "NGN 5,000.00", "Grand total: NGN 10,000.00"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestPreview_InvalidBundleSkipsBackend(t *testing.T) {
	b, _ := setup(t)
	path := writeBundleFile(t, strings.Replace(bundleYAML, "count: 2", "count: 0", 1))

	_, stderr, err := execOrder(t, "preview", "--file", path)
	if err == nil {
		t.Fatal("expected error for invalid bundle")
	}
	if !strings.Contains(stderr, "instances.0.count") {
		t.Errorf("expected field path in stderr:\n%s", stderr)
	}
	if b.previews != 0 {
		t.Errorf("backend called %d times, want 0", b.previews)
	}
}

func TestPreview_RejectsUnknownOutput(t *testing.T) {
	setup(t)
	path := writeBundleFile(t, bundleYAML)

	_, _, err := execOrder(t, "preview", "--file", path, "-o", "yaml")
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Fatalf("expected output format error, got %v", err)
	}
}

// --- submit ---

func TestSubmit_PaymentRequiredStoresTransaction(t *testing.T) {
	b, repo := setup(t)
	path := writeBundleFile(t, bundleYAML)

	stdout, _, err := execOrder(t, "submit", "--file", path, "--tag", "team-web", "--tag", "billing", "--tenant", "42")
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	for _, want := range []string{"981", "NGN 10,000.00", "paystack (card)", "vpsorder order watch 981"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}

	if len(b.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(b.submits))
	}
	if b.keys[0] == "" {
		t.Error("submission sent without an idempotency key")
	}
	if diff := cmp.Diff([]any{"billing", "team-web"}, b.submits[0]["tags"]); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if got := b.submits[0]["tenant_id"]; got != float64(42) {
		t.Errorf("tenant_id = %v, want 42", got)
	}

	record, err := repo.GetByTransactionID("981")
	if err != nil || record == nil {
		t.Fatalf("expected stored transaction, got %v, %v", record, err)
	}
	if record.IdempotencyKey != b.keys[0] {
		t.Errorf("stored key = %q, want %q", record.IdempotencyKey, b.keys[0])
	}
	if record.Status != domain.StatusPending {
		t.Errorf("stored status = %q, want pending", record.Status)
	}
}

func TestSubmit_WatchFollowsToCompletion(t *testing.T) {
	b, repo := setup(t)
	b.statuses = []string{"pending", "completed"}
	path := writeBundleFile(t, bundleYAML)

	stdout, _, err := execOrder(t, "submit", "--file", path, "--watch")
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if !strings.Contains(stdout, "Payment for transaction 981 confirmed") {
		t.Errorf("expected confirmation in output:\n%s", stdout)
	}

	record, err := repo.GetByTransactionID("981")
	if err != nil || record == nil {
		t.Fatalf("GetByTransactionID: %v, %v", record, err)
	}
	if record.Status != domain.StatusCompleted {
		t.Errorf("stored status = %q, want completed", record.Status)
	}
}

func TestSubmit_JSON(t *testing.T) {
	setup(t)
	path := writeBundleFile(t, bundleYAML)

	stdout, _, err := execOrder(t, "submit", "--file", path, "-o", "json")
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	var res domain.SubmissionResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, stdout)
	}
	if !res.PaymentRequired() || res.Transaction.ID != "981" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSubmit_FlagErrors(t *testing.T) {
	setup(t)
	path := writeBundleFile(t, bundleYAML)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"combined assignment", []string{"submit", "--file", path, "--tenant", "1", "--user", "2"}, "cannot be combined"},
		{"no file without terminal", []string{"submit"}, "requires a terminal"},
		{"missing file", []string{"submit", "--file", filepath.Join(t.TempDir(), "nope.yaml")}, "nope.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execOrder(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// --- watch ---

func TestWatch_FailedPaymentIsAnError(t *testing.T) {
	b, repo := setup(t)
	b.statuses = []string{"pending", "failed"}
	saveRecord(t, repo, "tx-1", domain.StatusPending, time.Now().Add(time.Hour))

	stdout, _, err := execOrder(t, "watch", "tx-1")
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if !strings.Contains(stdout, "failed") {
		t.Errorf("expected failure message:\n%s", stdout)
	}

	record, _ := repo.GetByTransactionID("tx-1")
	if record == nil || record.Status != domain.StatusFailed {
		t.Errorf("stored record = %+v, want failed", record)
	}
}

func TestWatch_AlreadyCompleted(t *testing.T) {
	b, _ := setup(t)
	b.statuses = []string{"completed"}

	stdout, _, err := execOrder(t, "watch", "tx-9")
	if err != nil {
		t.Fatalf("watch error: %v", err)
	}
	if !strings.Contains(stdout, "confirmed") {
		t.Errorf("expected confirmation:\n%s", stdout)
	}
	if b.reads != 1 {
		t.Errorf("status reads = %d, want 1", b.reads)
	}
}

func TestWatch_UnknownTransaction(t *testing.T) {
	setup(t)

	_, _, err := execOrder(t, "watch", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- list / resume / prune ---

func TestList_PendingAndAll(t *testing.T) {
	_, repo := setup(t)
	saveRecord(t, repo, "tx-open", domain.StatusPending, time.Now().Add(time.Hour))
	saveRecord(t, repo, "tx-done", domain.StatusCompleted, time.Time{})

	stdout, _, err := execOrder(t, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(stdout, "tx-open") || strings.Contains(stdout, "tx-done") {
		t.Errorf("pending list wrong:\n%s", stdout)
	}

	stdout, _, err = execOrder(t, "list", "--all", "-o", "json")
	if err != nil {
		t.Fatalf("list --all error: %v", err)
	}
	var records []txstore.TransactionRecord
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, stdout)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

func TestList_Empty(t *testing.T) {
	setup(t)

	stdout, _, err := execOrder(t, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(stdout, "No pending transactions.") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestResume_RefreshesPending(t *testing.T) {
	b, repo := setup(t)
	b.statuses = []string{"completed"}
	saveRecord(t, repo, "tx-a", domain.StatusPending, time.Now().Add(time.Hour))
	saveRecord(t, repo, "tx-b", domain.StatusPending, time.Now().Add(time.Hour))

	stdout, _, err := execOrder(t, "resume")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if strings.Count(stdout, "completed") != 2 {
		t.Errorf("expected both transactions completed:\n%s", stdout)
	}

	pending, err := repo.ListPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after resume = %d, want 0", len(pending))
	}
}

func TestResume_NothingPending(t *testing.T) {
	setup(t)

	stdout, _, err := execOrder(t, "resume")
	if err != nil {
		t.Fatalf("resume error: %v", err)
	}
	if !strings.Contains(stdout, "No pending transactions.") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestPrune_RequiresValidAge(t *testing.T) {
	setup(t)

	_, _, err := execOrder(t, "prune", "--older-than", "soon")
	if err == nil || !strings.Contains(err.Error(), "invalid --older-than") {
		t.Fatalf("expected age error, got %v", err)
	}

	stdout, _, err := execOrder(t, "prune", "--older-than", "30d")
	if err != nil {
		t.Fatalf("prune error: %v", err)
	}
	if !strings.Contains(stdout, "Removed 0 transaction(s).") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

// --- helpers ---

func TestMergeTags(t *testing.T) {
	got := mergeTags([]string{"a", " b "}, []string{"b", "", "c"})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("mergeTags mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeReport_KeepsStatusMonotonic(t *testing.T) {
	tx := domain.Transaction{ID: "tx", Status: domain.StatusTransferPending}

	got := mergeReport(tx, domain.StatusReport{Status: domain.StatusPending, Currency: "NGN"})
	if got.Status != domain.StatusTransferPending {
		t.Errorf("status regressed to %q", got.Status)
	}
	if got.Currency != "NGN" {
		t.Errorf("currency = %q, want NGN", got.Currency)
	}

	got = mergeReport(tx, domain.StatusReport{Status: domain.StatusCompleted})
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}
