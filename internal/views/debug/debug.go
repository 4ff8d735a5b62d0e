// Package debug collects feed, poll and command events in a capped ring
// and renders them as an overlay pager.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/theme"
)

// capacity bounds the ring; a remote at one-second polls generates few
// events, so a small window covers a long stretch of history.
const capacity = 256

// Entry is one logged event.
type Entry struct {
	At      time.Time
	Kind    string // "ws", "poll", "cmd", "err"
	Message string
}

// Model holds the event ring and pager position.
type Model struct {
	Entries []Entry
	Offset  int // lines scrolled back from the tail
}

// New creates an empty event log.
func New() Model {
	return Model{}
}

// Add records an event and snaps the pager back to the tail.
func (m *Model) Add(kind, message string) {
	m.Entries = append(m.Entries, Entry{At: time.Now(), Kind: kind, Message: message})
	if n := len(m.Entries) - capacity; n > 0 {
		m.Entries = append(m.Entries[:0], m.Entries[n:]...)
	}
	m.Offset = 0
}

// ScrollUp pages toward older events.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	if max := len(m.Entries) - 1; m.Offset > max {
		m.Offset = max
	}
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// ScrollDown pages back toward the tail.
func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// View renders the pager panel sized to the window.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	rows := height - 6
	if rows < 3 {
		rows = 3
	}

	header := theme.StyleHeader.Render(" EVENTS ")
	footer := theme.StyleDimmed.Render(
		fmt.Sprintf("j/k:scroll  esc:close  %d events", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  No events yet.")
		return panel(innerW).Render(
			lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer))
	}

	tail := len(m.Entries) - m.Offset
	head := tail - rows
	if head < 0 {
		head = 0
	}

	lines := make([]string, 0, tail-head)
	for _, e := range m.Entries[head:tail] {
		lines = append(lines, m.renderEntry(e, innerW))
	}

	marker := ""
	if m.Offset > 0 {
		marker = theme.StyleDimmed.Render(fmt.Sprintf(" ▼ %d newer", m.Offset))
	}

	return panel(innerW).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), marker, footer))
}

func (m Model) renderEntry(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.At.Format("15:04:05"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(e.Kind)
	msg := e.Message
	if budget := width - 16; budget > 3 && len(msg) > budget {
		msg = msg[:budget-1] + "…"
	}
	return ts + " " + kind + " " + msg
}

func panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case "ws":
		return theme.ColorLive
	case "err":
		return theme.ColorDanger
	case "cmd":
		return theme.ColorAccent
	case "poll":
		return theme.ColorWarning
	default:
		return theme.ColorDimmed
	}
}
