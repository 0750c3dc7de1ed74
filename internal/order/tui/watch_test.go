package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
)

type fakeFlow struct {
	view      workflow.View
	payResult gateway.Outcome
	payErr    error

	nextCalls    int
	payCalls     int
	checkCalls   int
	dismissCalls int
}

func (f *fakeFlow) View() workflow.View { return f.view }

func (f *fakeFlow) NextGateway() (domain.PaymentGatewayOption, error) {
	f.nextCalls++
	if len(f.view.Options) == 0 {
		return domain.PaymentGatewayOption{}, errors.New("no options")
	}
	f.view.Selected = (f.view.Selected + 1) % len(f.view.Options)
	return f.view.Options[f.view.Selected], nil
}

func (f *fakeFlow) Pay(context.Context) (gateway.Outcome, error) {
	f.payCalls++
	return f.payResult, f.payErr
}

func (f *fakeFlow) CheckNow()      { f.checkCalls++ }
func (f *fakeFlow) DismissNotice() { f.dismissCalls++ }

func pendingView() workflow.View {
	tx := domain.Transaction{
		ID:        "tx-1",
		Amount:    10000,
		Currency:  "NGN",
		Status:    domain.StatusPending,
		ExpiresAt: time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC),
		GatewayOptions: []domain.PaymentGatewayOption{
			{
				Gateway:     "paystack",
				PaymentType: domain.PaymentCard,
				Charges: domain.ChargeBreakdown{
					BaseAmount: 10000, PercentageFee: 150, FlatFee: 100, TotalFees: 250, GrandTotal: 10250, Currency: "NGN",
				},
			},
			{
				Gateway:     "bank",
				PaymentType: domain.PaymentTransfer,
				Charges:     domain.ChargeBreakdown{BaseAmount: 10000, GrandTotal: 10000, Currency: "NGN"},
				Bank:        &domain.BankDetails{AccountName: "Acme Cloud", AccountNumber: "0123456789", BankName: "First Bank"},
			},
		},
	}
	return workflow.View{
		Stage:       workflow.StagePayment,
		Transaction: &tx,
		Options:     tx.GatewayOptions,
		Selected:    0,
		Remaining:   90 * time.Second,
	}
}

func sized(m watchModel) watchModel {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(watchModel)
}

func press(t *testing.T, m watchModel, key string) (watchModel, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(watchModel), cmd
}

func TestWatch_TabCyclesGateway(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, nil, "api.example.com"))

	m, _ = press(t, m, "tab")

	if flow.nextCalls != 1 {
		t.Fatalf("NextGateway calls = %d, want 1", flow.nextCalls)
	}
	if m.view.Selected != 1 {
		t.Errorf("selected = %d, want 1", m.view.Selected)
	}
	if !strings.Contains(m.View(), "First Bank") {
		t.Error("expected bank details for the transfer option in the view")
	}
}

func TestWatch_PayRunsOnceAtATime(t *testing.T) {
	flow := &fakeFlow{view: pendingView(), payResult: gateway.Success("ref")}
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	m, cmd := press(t, m, "p")
	if cmd == nil {
		t.Fatal("expected a pay command")
	}
	if !m.paying {
		t.Fatal("expected paying to be set")
	}

	// A second press while the checkout is open does nothing.
	m, cmd2 := press(t, m, "p")
	if cmd2 != nil {
		t.Error("expected no command while already paying")
	}

	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(watchModel)

	if flow.payCalls != 1 {
		t.Errorf("Pay calls = %d, want 1", flow.payCalls)
	}
	if m.paying {
		t.Error("expected paying to be cleared after the checkout returned")
	}
	if !strings.Contains(m.status, "confirming payment") {
		t.Errorf("status = %q", m.status)
	}
}

func TestWatch_PayErrorShown(t *testing.T) {
	flow := &fakeFlow{view: pendingView(), payErr: domain.ErrInvalidAmount}
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	next, _ := m.Update(payDoneMsg{err: flow.payErr})
	m = next.(watchModel)

	if !strings.HasPrefix(m.status, "Payment aborted") {
		t.Errorf("status = %q", m.status)
	}
}

func TestWatch_CompletedEventQuits(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	flow.view.Transaction.Status = domain.StatusCompleted
	flow.view.PaymentComplete = true

	next, cmd := m.Update(pollerEventMsg{event: poller.Event{Kind: poller.EventCompleted, Status: domain.StatusCompleted}})
	m = next.(watchModel)

	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}

	want := WatchResult{Transaction: *flow.view.Transaction, Completed: true}
	if diff := cmp.Diff(want, m.result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestWatch_RefreshNoticesCompletion(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	next, cmd := m.Update(refreshMsg(time.Now()))
	m = next.(watchModel)
	if m.done {
		t.Fatal("did not expect done while pending")
	}
	if cmd == nil {
		t.Fatal("expected the refresh to be rescheduled")
	}

	flow.view.PaymentComplete = true
	next, _ = m.Update(refreshMsg(time.Now()))
	if !next.(watchModel).done {
		t.Error("expected done once the workflow reports completion")
	}
}

func TestWatch_ErrorEventKeepsWatching(t *testing.T) {
	events := make(chan poller.Event)
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, events, ""))

	next, cmd := m.Update(pollerEventMsg{event: poller.Event{Kind: poller.EventError, Err: errors.New("boom")}})
	m = next.(watchModel)

	if cmd == nil {
		t.Fatal("expected to keep waiting for events")
	}
	if m.done {
		t.Error("did not expect done after a read error")
	}
	if !strings.Contains(m.status, "boom") {
		t.Errorf("status = %q", m.status)
	}
}

func TestWatch_TerminalIgnoresPaymentKeys(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	flow.view.Transaction.Status = domain.StatusExpired
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	m, _ = press(t, m, "p")
	m, _ = press(t, m, "tab")
	_, _ = press(t, m, "r")

	if flow.payCalls+flow.nextCalls+flow.checkCalls != 0 {
		t.Errorf("expected no workflow calls on an expired transaction, got pay=%d next=%d check=%d",
			flow.payCalls, flow.nextCalls, flow.checkCalls)
	}
}

func TestWatch_CheckNowAndDismiss(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, nil, ""))

	m, _ = press(t, m, "r")
	if flow.checkCalls != 1 {
		t.Errorf("CheckNow calls = %d, want 1", flow.checkCalls)
	}
	m, _ = press(t, m, "esc")
	if flow.dismissCalls != 1 {
		t.Errorf("DismissNotice calls = %d, want 1", flow.dismissCalls)
	}
	if m.status != "" {
		t.Errorf("status = %q, want empty", m.status)
	}
}

func TestWatch_ViewShowsCountdownAndTotals(t *testing.T) {
	flow := &fakeFlow{view: pendingView()}
	m := sized(newWatchModel(context.Background(), flow, nil, "api.example.com"))

	out := m.View()
	for _, want := range []string{"tx-1", "1:30", "NGN 10,250.00", "paystack (card)"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
