// Package detail renders the session info flyout overlay.
package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/jellyfin"
	"github.com/jellyremote/jellyremote/internal/theme"
)

const (
	panelWidth = 56
	labelWidth = 14
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the state for the detail overlay.
type Model struct {
	Session *jellyfin.Session
	Channel string // resolved channel name for this session
}

// New creates a detail model for the given session.
func New(s *jellyfin.Session, channel string) Model {
	return Model{Session: s, Channel: channel}
}

// View renders the detail panel. Returns an empty string if no session is set.
func (m Model) View() string {
	if m.Session == nil {
		return ""
	}
	s := m.Session
	var b strings.Builder

	b.WriteString(styleTitle.Render("Session: "+s.DisplayName()) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "ID", truncate(s.ID, 36))
	if s.UserName != "" {
		writeRow(&b, "User", s.UserName)
	}
	if s.Client != "" {
		writeRow(&b, "Client", s.Client)
	}
	if s.DeviceName != "" {
		writeRow(&b, "Device", s.DeviceName)
	}
	writeRow(&b, "Channel", theme.ChannelBadge(m.Channel)+" "+m.Channel)
	if s.VolumeLevel != nil {
		writeRow(&b, "Volume", fmt.Sprintf("%d%%", *s.VolumeLevel))
	}

	if len(s.SupportedCommands) > 0 {
		b.WriteString("\n")
		b.WriteString(styleLabel.Render("Commands:") + "\n")
		for _, line := range wrapList(s.SupportedCommands, panelWidth-8) {
			b.WriteString("  " + theme.StyleDimmed.Render(line) + "\n")
		}
	}

	if item := s.NowPlayingItem; item != nil {
		b.WriteString("\n")
		writeRow(&b, "Playing", truncate(item.Name, 36))
		if sub := item.Subtitle(); sub != "" {
			writeRow(&b, "", truncate(sub, 36))
		}
	}

	b.WriteString("\n" + styleFooter.Render("[esc] close"))
	return stylePanel.Width(panelWidth).Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	if label != "" {
		label += ":"
	}
	b.WriteString(styleLabel.Render(label) + styleValue.Render(value) + "\n")
}

// wrapList joins names with commas, breaking lines at width.
func wrapList(items []string, width int) []string {
	var lines []string
	var cur string
	for _, it := range items {
		if cur == "" {
			cur = it
			continue
		}
		if len(cur)+len(it)+2 > width {
			lines = append(lines, cur+",")
			cur = it
			continue
		}
		cur += ", " + it
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
