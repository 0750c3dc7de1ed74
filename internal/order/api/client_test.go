package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/retry"
)

// --- Test helpers ---

type staticAuth struct{ token string }

func (s staticAuth) AuthHeaders(context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.token)
	return h, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithStatusRetry(retry.Config{MaxAttempts: 2})}, opts...)
	return NewClient(srv.URL, staticAuth{token: "test-token"}, opts...)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func submissionData(required, fastTrackCompleted bool) map[string]any {
	return map[string]any{
		"transaction": map[string]any{
			"id":       981,
			"amount":   "10000.00",
			"currency": "NGN",
			"status":   "pending",
		},
		"instances": []any{
			map[string]any{"id": 1, "name": "web-1", "status": "pending_payment"},
		},
		"payment": map[string]any{
			"required":   required,
			"expires_at": "2026-01-01T12:30:00Z",
			"payment_gateway_options": []any{
				map[string]any{
					"id":           "1",
					"gateway":      "Paystack",
					"payment_type": "card",
					"charge_breakdown": map[string]any{
						"base_amount": 10000, "percentage_fee": 150, "flat_fee": 100,
						"total_fees": 250, "grand_total": 10250, "currency": "NGN",
					},
					"transaction_reference": "ref-card",
				},
				map[string]any{
					"id":           "2",
					"gateway":      "Bank Transfer",
					"payment_type": "transfer",
					"charge_breakdown": map[string]any{
						"base_amount": 10000, "grand_total": 10000, "currency": "NGN",
					},
					"transaction_reference": "ref-transfer",
					"bank_details": map[string]any{
						"account_name": "Acme Cloud", "account_number": 123456789, "bank_name": "First Bank",
					},
				},
			},
		},
		"order":       map[string]any{"id": 55},
		"order_items": []any{map[string]any{"description": "web x2", "quantity": 2, "unit_price": "5000", "total": "10000"}},
		"pricing_breakdown": map[string]any{
			"subtotal": 10000, "discount": 0, "tax": 0, "total": 10000, "currency": "NGN",
		},
		"fast_track_completed": fastTrackCompleted,
	}
}

// --- Preview ---

func TestPreview_Success(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/business/instances/preview-pricing" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"previews": []any{
					map[string]any{"index": 0, "count": 2, "currency": "NGN", "unit_price": "5000.00", "total_price": 10000},
				},
				"currency":    "NGN",
				"grand_total": "10,000.00",
			},
		})
	})

	preview, err := c.Preview(context.Background(), []domain.ConfigurationBundle{sampleBundle()}, false, domain.OrderAssignment{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	want := &domain.PricingPreview{
		Bundles:    []domain.BundlePrice{{Index: 0, Count: 2, Currency: "NGN", UnitPrice: 5000, TotalPrice: 10000}},
		Currency:   "NGN",
		GrandTotal: 10000,
	}
	if diff := cmp.Diff(want, preview); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if reqs, ok := gotBody["pricing_requests"].([]any); !ok || len(reqs) != 1 {
		t.Errorf("expected one pricing request, got %v", gotBody["pricing_requests"])
	}
}

func TestPreview_RemoteValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": "The given data was invalid.",
			"errors": map[string]any{
				"pricing_requests.0.number_of_instances": []string{"The number of instances must be at least 1."},
				"pricing_requests.0.region":              "Region is unavailable.",
			},
		})
	})

	_, err := c.Preview(context.Background(), []domain.ConfigurationBundle{sampleBundle()}, false, domain.OrderAssignment{})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := domain.FieldErrors{
		"instances.0.count":  {"The number of instances must be at least 1."},
		"instances.0.region": {"Region is unavailable."},
	}
	if diff := cmp.Diff(want, ve.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if !ve.Remote {
		t.Error("expected Remote to be set")
	}
}

func TestPreview_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusConflict, domain.ErrConflict},
		{http.StatusInternalServerError, domain.ErrRemote},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"success": false, "message": "nope"})
			})
			_, err := c.Preview(context.Background(), nil, false, domain.OrderAssignment{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPreview_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Preview(context.Background(), nil, false, domain.OrderAssignment{})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}

// --- Submit ---

func TestSubmit_PaymentRequired(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/business/instances/create" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get(HeaderIdempotencyKey)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": submissionData(true, false)})
	}, WithKeyGenerator(func() string { return "key-1" }))

	res, err := c.Submit(context.Background(), SubmitRequest{
		Bundles: []domain.ConfigurationBundle{sampleBundle()},
		Tags:    []string{"prod"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotKey != "key-1" || res.IdempotencyKey != "key-1" {
		t.Errorf("idempotency key header=%q result=%q, want key-1", gotKey, res.IdempotencyKey)
	}
	if !res.PaymentRequired() {
		t.Fatalf("expected payment required, got %s", res.Outcome)
	}

	tx := res.Transaction
	if tx.ID != "981" || tx.Amount != 10000 || tx.Status != domain.StatusPending {
		t.Errorf("unexpected transaction %+v", tx)
	}
	wantExpiry := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	if !tx.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", tx.ExpiresAt, wantExpiry)
	}
	if len(tx.GatewayOptions) != 2 {
		t.Fatalf("expected 2 gateway options, got %d", len(tx.GatewayOptions))
	}
	transfer := tx.GatewayOptions[1]
	if transfer.Bank == nil || transfer.Bank.AccountNumber != "123456789" {
		t.Errorf("unexpected bank details %+v", transfer.Bank)
	}
	if len(tx.Order.LineItems) != 1 || tx.Order.LineItems[0].Total != 10000 {
		t.Errorf("unexpected line items %+v", tx.Order.LineItems)
	}
	if tags, _ := gotBody["tags"].([]any); len(tags) != 1 {
		t.Errorf("expected tags in body, got %v", gotBody["tags"])
	}
}

func TestSubmit_FastTrackCompleted(t *testing.T) {
	tests := []struct {
		name               string
		required, fastDone bool
		want               domain.SubmissionOutcome
	}{
		{"required", true, false, domain.OutcomePaymentRequired},
		{"required but fast-tracked", true, true, domain.OutcomeProvisioningStarted},
		{"not required", false, false, domain.OutcomeProvisioningStarted},
		{"neither flag conflicts", false, true, domain.OutcomeProvisioningStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": submissionData(tt.required, tt.fastDone)})
			})
			res, err := c.Submit(context.Background(), SubmitRequest{Bundles: []domain.ConfigurationBundle{sampleBundle()}})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.want)
			}
			if len(res.Instances) != 1 {
				t.Errorf("expected instance stubs, got %v", res.Instances)
			}
		})
	}
}

func TestSubmit_DistinctKeysPerAttempt(t *testing.T) {
	var keys []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get(HeaderIdempotencyKey))
		data := submissionData(true, false)
		data["transaction"].(map[string]any)["id"] = len(keys)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
	})

	req := SubmitRequest{Bundles: []domain.ConfigurationBundle{sampleBundle()}}
	first, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(keys) != 2 || keys[0] == keys[1] || keys[0] == "" {
		t.Errorf("expected two distinct keys, got %v", keys)
	}
	if first.Transaction.ID == second.Transaction.ID {
		t.Errorf("expected two distinct transactions, both were %s", first.Transaction.ID)
	}
}

func TestSubmit_NotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Submit(context.Background(), SubmitRequest{Bundles: []domain.ConfigurationBundle{sampleBundle()}})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

// --- TransactionStatus ---

func TestTransactionStatus_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/business/transactions/981/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"status": "Completed", "amount": 10250, "currency": "NGN"},
		})
	})

	got, err := c.TransactionStatus(context.Background(), "981")
	if err != nil {
		t.Fatalf("TransactionStatus: %v", err)
	}
	want := domain.StatusReport{TransactionID: "981", Status: domain.StatusCompleted, Amount: 10250, Currency: "NGN"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestTransactionStatus_RetriesTransientOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"status": "pending"}})
	})

	got, err := c.TransactionStatus(context.Background(), "1")
	if err != nil {
		t.Fatalf("TransactionStatus: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestTransactionStatus_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthenticated."})
	})

	_, err := c.TransactionStatus(context.Background(), "1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestNewIdempotencyKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		k := NewIdempotencyKey()
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}
