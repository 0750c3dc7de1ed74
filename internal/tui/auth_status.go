package tui

import (
	"errors"
	"fmt"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/services/auth"
	"nathanbeddoewebdev/vpsorder/internal/tui/components"
	"nathanbeddoewebdev/vpsorder/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AccountStatus is the login state of one API account.
type AccountStatus struct {
	Account string
	APIURL  string
	Source  string // "environment", "keychain", or empty
	Err     error
}

// LoggedIn reports whether a token is available.
func (s AccountStatus) LoggedIn() bool {
	return s.Source != ""
}

// Describe is the one-line status text.
func (s AccountStatus) Describe() string {
	switch {
	case s.LoggedIn():
		return "logged in (" + s.Source + ")"
	case s.Err == nil || errors.Is(s.Err, auth.ErrTokenNotFound):
		return "not logged in"
	default:
		return fmt.Sprintf("error: %v", s.Err)
	}
}

// CheckAccount reports the login state of the account behind apiURL.
func CheckAccount(store auth.Store, apiURL string) AccountStatus {
	p := auth.NewBearerProvider(store, apiURL)
	source, err := p.Source()
	return AccountStatus{Account: p.Account, APIURL: apiURL, Source: source, Err: err}
}

// --- Auth status model ---

type authStatusModel struct {
	status AccountStatus

	width  int
	height int
}

// RunAuthStatus starts the full-window auth status TUI.
func RunAuthStatus(status AccountStatus) error {
	p := tea.NewProgram(authStatusModel{status: status}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m authStatusModel) Init() tea.Cmd {
	return nil
}

func (m authStatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m authStatusModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := components.Header(m.width, "auth status", m.status.Account)
	footer := components.Footer(m.width, []components.KeyBinding{
		{Key: "q", Desc: "quit"},
	})

	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentH < 1 {
		contentH = 1
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderContent(contentH), footer)
}

func (m authStatusModel) renderContent(height int) string {
	title := styles.Title.Render("API Authentication")

	cardWidth := 60
	labelWidth := 12

	apiURL := m.status.APIURL
	if apiURL == "" {
		apiURL = "(not configured)"
	}

	var statusText string
	if m.status.LoggedIn() {
		statusText = styles.SuccessText.Render(m.status.Describe())
	} else {
		statusText = styles.MutedText.Render(m.status.Describe())
	}

	rows := []string{
		styles.Label.Width(labelWidth).Render("API") + styles.Value.Render(apiURL),
		styles.Label.Width(labelWidth).Render("Account") + styles.Value.Render(m.status.Account),
		styles.Label.Width(labelWidth).Render("Token") + statusText,
	}

	card := styles.Card.Width(cardWidth).Render(strings.Join(rows, "\n"))
	combined := lipgloss.JoinVertical(lipgloss.Center, title, "", card)

	return lipgloss.Place(
		m.width, height,
		lipgloss.Center, lipgloss.Center,
		combined,
	)
}
