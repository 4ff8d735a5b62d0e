package status

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	PushOpen bool
	Polling  bool
	Channel  string // "server" or "bridge"
	Session  string // display name of the controlled session
	Notice   string // transient command feedback, cleared by the app
	Width    int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetConnection updates the feed indicators.
func (m *Model) SetConnection(pushOpen, polling bool) {
	m.PushOpen = pushOpen
	m.Polling = polling
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	color := theme.ConnectionColor(m.PushOpen, m.Polling)
	switch {
	case m.PushOpen:
		connStr = lipgloss.NewStyle().Foreground(color).Render("● Live")
	case m.Polling:
		connStr = lipgloss.NewStyle().Foreground(color).Render("◌ Polling")
	default:
		connStr = lipgloss.NewStyle().Foreground(color).Render("○ Offline")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + theme.ChannelBadge(m.Channel)
	if m.Session != "" {
		content += " " + m.Session
	}
	if m.Notice != "" {
		content += sep + theme.StyleDimmed.Render(m.Notice)
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
