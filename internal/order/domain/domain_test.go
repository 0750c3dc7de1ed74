package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusTransferPending, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusExpired, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusTransferPending, StatusCompleted, true},
		{StatusProcessing, StatusPending, false},
		{StatusTransferPending, StatusPending, false},
		{StatusProcessing, StatusTransferPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusExpired, StatusCompleted, false},
		{StatusCompleted, StatusCompleted, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	terminal := map[TransactionStatus]bool{
		StatusPending:         false,
		StatusProcessing:      false,
		StatusTransferPending: false,
		StatusCompleted:       true,
		StatusFailed:          true,
		StatusExpired:         true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
	if !StatusPending.Pollable() || !StatusTransferPending.Pollable() {
		t.Error("pending and transfer_pending must be pollable")
	}
	if StatusProcessing.Pollable() {
		t.Error("processing must not start a poller")
	}
}

func TestTransaction_Remaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tx := Transaction{}
	if got := tx.Remaining(now); got != -1 {
		t.Errorf("expected -1 without expiry, got %v", got)
	}

	tx.ExpiresAt = now.Add(5 * time.Second)
	if got := tx.Remaining(now); got != 5*time.Second {
		t.Errorf("Remaining = %v, want 5s", got)
	}
	if got := tx.Remaining(now.Add(time.Minute)); got != 0 {
		t.Errorf("Remaining after expiry = %v, want 0", got)
	}
}

func TestChargeBreakdown_Consistent(t *testing.T) {
	card := ChargeBreakdown{
		BaseAmount:    10000,
		PercentageFee: 150,
		FlatFee:       100,
		TotalFees:     250,
		GrandTotal:    10250,
		Currency:      "NGN",
	}
	transfer := ChargeBreakdown{BaseAmount: 10000, GrandTotal: 10000, Currency: "NGN"}

	if !card.Consistent() {
		t.Error("card breakdown should be consistent")
	}
	if !transfer.Consistent() {
		t.Error("transfer breakdown should be consistent")
	}

	bad := card
	bad.GrandTotal = 10300
	if bad.Consistent() {
		t.Error("breakdown with wrong grand total should not be consistent")
	}
}

func TestPaymentGatewayOption_Key(t *testing.T) {
	withID := PaymentGatewayOption{ID: "7", Gateway: "Paystack", PaymentType: PaymentCard}
	if withID.Key() != "7" {
		t.Errorf("Key = %q, want 7", withID.Key())
	}
	noID := PaymentGatewayOption{Gateway: "Paystack", PaymentType: PaymentTransfer}
	if noID.Key() != "Paystack:transfer" {
		t.Errorf("Key = %q, want Paystack:transfer", noID.Key())
	}
}

func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	fe.Add(BundlePath(1, "count"), "must be at least 1")
	fe.Add(BundlePath(0, "name"), "required")
	fe.Merge(FieldErrors{BundlePath(0, "name"): {"too short"}})

	want := []string{"instances.0.name", "instances.1.count"}
	if diff := cmp.Diff(want, fe.Paths()); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(FieldErrors{"name": {"required", "too short"}}, fe.ForBundle(0)); diff != "" {
		t.Errorf("ForBundle mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(fe.String(), "instances.1.count: must be at least 1") {
		t.Errorf("String() = %q", fe.String())
	}
}

func TestValidationError_As(t *testing.T) {
	var err error = &ValidationError{Fields: FieldErrors{"instances.0.name": {"required"}}, Remote: true}
	wrapped := errors.Join(errors.New("preview failed"), err)

	var ve *ValidationError
	if !errors.As(wrapped, &ve) {
		t.Fatal("expected errors.As to find ValidationError")
	}
	if !ve.Remote {
		t.Error("expected Remote to be true")
	}
	if !strings.Contains(ve.Error(), "instances.0.name: required") {
		t.Errorf("Error() = %q", ve.Error())
	}
}

func TestConfigurationBundle_Clone(t *testing.T) {
	b := ConfigurationBundle{
		Name:    "web",
		Volumes: []VolumeSpec{{VolumeTypeID: "10", SizeGB: 50}},
		Tags:    []string{"prod"},
	}
	c := b.Clone()
	c.Volumes[0].SizeGB = 80
	c.Tags[0] = "dev"

	if b.Volumes[0].SizeGB != 50 || b.Tags[0] != "prod" {
		t.Error("Clone shares slices with the original")
	}
}
