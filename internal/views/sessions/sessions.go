// Package sessions renders the session picker overlay: every playback
// endpoint the directory knows about, with the controlled one marked.
package sessions

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/jellyfin"
	"github.com/jellyremote/jellyremote/internal/theme"
)

const panelWidth = 56

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the picker state.
type Model struct {
	Sessions   []*jellyfin.Session
	SelectedID string
	Cursor     int
}

// New creates an empty picker.
func New() Model {
	return Model{}
}

// SetSessions replaces the list and keeps the cursor on the same session
// when it survives the update.
func (m *Model) SetSessions(sessions []*jellyfin.Session, selectedID string) {
	var cursorID string
	if m.Cursor >= 0 && m.Cursor < len(m.Sessions) {
		cursorID = m.Sessions[m.Cursor].ID
	}
	m.Sessions = sessions
	m.SelectedID = selectedID
	m.Cursor = 0
	for i, s := range sessions {
		if s.ID == cursorID {
			m.Cursor = i
			break
		}
	}
}

// MoveUp moves the cursor toward the top.
func (m *Model) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

// MoveDown moves the cursor toward the bottom.
func (m *Model) MoveDown() {
	if m.Cursor < len(m.Sessions)-1 {
		m.Cursor++
	}
}

// Current returns the session under the cursor, nil when the list is empty.
func (m Model) Current() *jellyfin.Session {
	if m.Cursor < 0 || m.Cursor >= len(m.Sessions) {
		return nil
	}
	return m.Sessions[m.Cursor]
}

// View renders the picker panel.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("Sessions") + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	if len(m.Sessions) == 0 {
		b.WriteString(theme.StyleDimmed.Render("  No sessions on the server.") + "\n")
	}
	for i, s := range m.Sessions {
		prefix := "  "
		if i == m.Cursor {
			prefix = "> "
		}
		mark := " "
		if s.ID == m.SelectedID {
			mark = "*"
		}

		glyph := theme.TransportGlyph(s.NowPlayingItem != nil, s.Paused())
		color := theme.TransportColor(s.NowPlayingItem != nil, s.Paused())

		line := fmt.Sprintf("%s%s %s %s", prefix, mark,
			lipgloss.NewStyle().Foreground(color).Render(glyph),
			truncate(s.DisplayName(), 28))
		if s.NowPlayingItem != nil {
			line += theme.StyleDimmed.Render("  " + truncate(s.NowPlayingItem.Name, 18))
		}
		if i == m.Cursor {
			line = theme.StyleSelected.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + styleFooter.Render("j/k:move  enter:control  esc:close"))
	return stylePanel.Width(panelWidth).Render(b.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
