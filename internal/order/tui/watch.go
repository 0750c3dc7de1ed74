// Package tui holds the interactive order views: the huh wizard that
// walks an order from assignment to submission, and the bubbletea payment
// watcher that polls a transaction until it settles.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
	"nathanbeddoewebdev/vpsorder/internal/tui/components"
	"nathanbeddoewebdev/vpsorder/internal/tui/styles"
)

// PaymentFlow is the part of the workflow the watcher drives.
// *workflow.Workflow implements it.
type PaymentFlow interface {
	View() workflow.View
	NextGateway() (domain.PaymentGatewayOption, error)
	Pay(ctx context.Context) (gateway.Outcome, error)
	CheckNow()
	DismissNotice()
}

// WatchResult is how the watcher ended.
type WatchResult struct {
	Transaction domain.Transaction
	Completed   bool
}

// --- Messages ---

type pollerEventMsg struct{ event poller.Event }

type eventsClosedMsg struct{}

type refreshMsg time.Time

type payDoneMsg struct {
	outcome gateway.Outcome
	err     error
}

// --- Model ---

type watchModel struct {
	ctx     context.Context
	flow    PaymentFlow
	events  <-chan poller.Event
	account string

	view    workflow.View
	spinner spinner.Model
	paying  bool
	checks  int

	status      string
	statusLevel components.StatusLevel

	done   bool
	width  int
	height int
}

// RunPaymentWatcher shows the live payment view until the transaction
// settles or the user quits. events must carry the workflow's poller
// events, typically fed from workflow.Config.OnEvent.
func RunPaymentWatcher(ctx context.Context, flow PaymentFlow, events <-chan poller.Event, account string) (WatchResult, error) {
	m := newWatchModel(ctx, flow, events, account)
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return WatchResult{}, fmt.Errorf("payment watcher failed: %w", err)
	}
	fm, ok := final.(watchModel)
	if !ok {
		fm = m
	}
	return fm.result(), nil
}

func newWatchModel(ctx context.Context, flow PaymentFlow, events <-chan poller.Event, account string) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.AccentText
	return watchModel{
		ctx:     ctx,
		flow:    flow,
		events:  events,
		account: account,
		view:    flow.View(),
		spinner: s,
	}
}

func (m watchModel) result() WatchResult {
	r := WatchResult{Completed: m.view.PaymentComplete}
	if m.view.Transaction != nil {
		r.Transaction = *m.view.Transaction
	}
	return r
}

func waitForEvent(events <-chan poller.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return pollerEventMsg{event: e}
	}
}

// refreshEvery re-reads the workflow so the countdown moves and a
// completion is noticed even when an event was dropped by the sender.
func refreshEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m watchModel) payCmd() tea.Cmd {
	flow, ctx := m.flow, m.ctx
	return func() tea.Msg {
		outcome, err := flow.Pay(ctx)
		return payDoneMsg{outcome: outcome, err: err}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), refreshEvery())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pollerEventMsg:
		m.view = m.flow.View()
		m.applyEvent(msg.event)
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case refreshMsg:
		m.view = m.flow.View()
		if m.view.PaymentComplete {
			m.done = true
			return m, tea.Quit
		}
		return m, refreshEvery()

	case eventsClosedMsg:
		m.view = m.flow.View()
		return m, nil

	case payDoneMsg:
		m.paying = false
		m.view = m.flow.View()
		m.applyPayOutcome(msg.outcome, msg.err)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *watchModel) applyEvent(e poller.Event) {
	switch e.Kind {
	case poller.EventStatus:
		if m.checks > 0 {
			m.checks--
		}
		if e.Status != e.Previous && e.Previous != "" {
			m.setStatus(fmt.Sprintf("Status changed to %s.", e.Status), components.StatusInfo)
		}
	case poller.EventCompleted:
		m.setStatus("Payment confirmed.", components.StatusSuccess)
		m.done = true
	case poller.EventFailed:
		m.setStatus("Payment failed. Submit the order again to retry.", components.StatusError)
	case poller.EventExpired:
		m.setStatus("The transaction expired. Submit the order again.", components.StatusError)
	case poller.EventError:
		if m.checks > 0 {
			m.checks--
		}
		m.setStatus("Could not refresh payment status: "+errText(e.Err), components.StatusWarn)
	case poller.EventStopped:
		if e.Err != nil && !errors.Is(e.Err, context.Canceled) {
			m.setStatus("Stopped checking payment status: "+errText(e.Err), components.StatusError)
		}
	}
}

func (m *watchModel) applyPayOutcome(outcome gateway.Outcome, err error) {
	if err != nil {
		m.setStatus("Payment aborted: "+errText(err), components.StatusError)
		return
	}
	switch outcome.Kind {
	case gateway.OutcomeSuccess:
		if opt, ok := m.selected(); ok && opt.IsTransfer() {
			m.setStatus("Transfer the grand total using the bank details below. Waiting for confirmation.", components.StatusInfo)
			return
		}
		m.checks++
		m.setStatus("Checkout finished, confirming payment...", components.StatusInfo)
	case gateway.OutcomeCancel:
		m.setStatus("Checkout cancelled.", components.StatusWarn)
	default:
		m.setStatus("Checkout failed: "+errText(outcome.Err), components.StatusError)
	}
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		if m.paying || m.terminal() {
			return m, nil
		}
		if opt, err := m.flow.NextGateway(); err == nil {
			m.view = m.flow.View()
			m.setStatus("Selected "+GatewayLabel(opt)+".", components.StatusInfo)
		}
		return m, nil

	case "p", "enter":
		if m.paying || m.terminal() || m.view.Transaction == nil {
			return m, nil
		}
		m.paying = true
		m.setStatus("Starting payment...", components.StatusInfo)
		return m, m.payCmd()

	case "r":
		if m.terminal() {
			return m, nil
		}
		m.checks++
		m.flow.CheckNow()
		m.setStatus("Checking payment status...", components.StatusInfo)
		return m, nil

	case "esc":
		m.flow.DismissNotice()
		m.status = ""
		m.view = m.flow.View()
		return m, nil
	}
	return m, nil
}

func (m *watchModel) setStatus(text string, level components.StatusLevel) {
	m.status = text
	m.statusLevel = level
}

func (m watchModel) terminal() bool {
	return m.view.Transaction != nil && m.view.Transaction.Status.IsTerminal()
}

func (m watchModel) selected() (domain.PaymentGatewayOption, bool) {
	if m.view.Selected < 0 || m.view.Selected >= len(m.view.Options) {
		return domain.PaymentGatewayOption{}, false
	}
	return m.view.Options[m.view.Selected], true
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// --- View ---

func (m watchModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "order payment", m.account)
	footer := components.Footer(m.width, m.bindings())
	statusBar := components.StatusBar(m.width, m.statusLine(), m.statusLevel)

	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	content := lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.renderContent())
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar, footer)
}

func (m watchModel) statusLine() string {
	text := m.status
	if m.view.Notice != nil && text == "" {
		text = m.view.Notice.Message
	}
	if m.paying || m.checks > 0 {
		text = m.spinner.View() + " " + text
	}
	return text
}

func (m watchModel) bindings() []components.KeyBinding {
	if m.terminal() {
		return []components.KeyBinding{{Key: "q", Desc: "quit"}}
	}
	return []components.KeyBinding{
		{Key: "tab", Desc: "gateway"},
		{Key: "p", Desc: "pay"},
		{Key: "r", Desc: "check now"},
		{Key: "esc", Desc: "dismiss"},
		{Key: "q", Desc: "quit"},
	}
}

const (
	cardWidth  = 60
	labelWidth = 18
)

func (m watchModel) renderContent() string {
	tx := m.view.Transaction
	if tx == nil {
		return styles.MutedText.Render("No transaction to watch.")
	}

	maxText := max(min(cardWidth, m.width)-6, labelWidth+8)
	optionW := maxText - 16

	summary := []string{
		row("Transaction", tx.ID, maxText),
		row("Amount", FormatMoney(tx.Amount, tx.Currency), maxText),
		styles.Label.Width(labelWidth).Render("Status") + styles.StatusIndicator(string(tx.Status)),
		styles.Label.Width(labelWidth).Render("Expires in") +
			styles.CountdownStyle(m.view.Remaining).Render(FormatRemaining(m.view.Remaining)),
	}
	cards := []string{
		styles.Title.Render("Payment"),
		"",
		styles.Card.Width(cardWidth).Render(strings.Join(summary, "\n")),
	}

	if len(m.view.Options) == 0 {
		cards = append(cards, "", styles.MutedText.Render("The backend offered no payment options."))
		return lipgloss.JoinVertical(lipgloss.Center, cards...)
	}

	options := make([]string, 0, len(m.view.Options))
	for i, opt := range m.view.Options {
		label := ansi.Truncate(GatewayLabel(opt), optionW, "…")
		total := FormatMoney(opt.Charges.GrandTotal, opt.Charges.Currency)
		line := fmt.Sprintf("%-*s %s", optionW, label, total)
		if i == m.view.Selected {
			options = append(options, styles.AccentText.Render("› "+line))
		} else {
			options = append(options, styles.MutedText.Render("  "+line))
		}
	}
	cards = append(cards, "", styles.Card.Width(cardWidth).Render(strings.Join(options, "\n")))

	if opt, ok := m.selected(); ok {
		var detail []string
		for _, l := range ChargeLines(opt.Charges) {
			detail = append(detail, row(l[0], l[1], maxText))
		}
		if bank := BankLines(opt); bank != nil {
			detail = append(detail, "")
			for _, l := range bank {
				detail = append(detail, row(l[0], l[1], maxText))
			}
		}
		cards = append(cards, "", styles.CardActive.Width(cardWidth).Render(strings.Join(detail, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Center, cards...)
}

func row(label, value string, maxText int) string {
	return styles.Label.Width(labelWidth).Render(label) +
		styles.Value.Render(ansi.Truncate(value, maxText-labelWidth, "…"))
}
