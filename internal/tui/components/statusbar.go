package components

import (
	"nathanbeddoewebdev/vpsorder/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

// StatusLevel selects the color of a status bar message.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusWarn
	StatusError
	StatusSuccess
)

// StatusBar renders a status message line between the content and footer.
func StatusBar(width int, message string, level StatusLevel) string {
	if message == "" {
		return ""
	}

	style := styles.MutedText
	switch level {
	case StatusWarn:
		style = styles.WarningText
	case StatusError:
		style = styles.ErrorText
	case StatusSuccess:
		style = styles.SuccessText
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 2).
		Render(style.Render(message))
}
