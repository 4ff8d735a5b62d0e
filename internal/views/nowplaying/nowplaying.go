// Package nowplaying renders the central playback panel: title lines,
// transport glyph, progress bar, and the artwork reference.
package nowplaying

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/engine"
	"github.com/jellyremote/jellyremote/internal/theme"
)

const (
	panelWidth = 64
	barWidth   = 40
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(1, 2)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleSubtitle = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleClock = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the playback panel state.
type Model struct {
	State *engine.ViewState
	Width int
}

// New creates an empty playback panel model.
func New() Model {
	return Model{}
}

// View renders the panel. A nil state renders the same as an idle one.
func (m Model) View() string {
	width := m.Width
	if width < panelWidth || width > panelWidth*2 {
		width = panelWidth
	}
	inner := width - 6

	v := m.State
	if v == nil {
		v = &engine.ViewState{Title: "Idle"}
	}

	var b strings.Builder

	glyph := lipgloss.NewStyle().
		Foreground(theme.TransportColor(v.HasItem, v.Paused)).
		Render(theme.TransportGlyph(v.HasItem, v.Paused))
	b.WriteString(glyph + " " + styleTitle.Render(truncate(v.Title, inner-4)) + "\n")

	sub := v.Subtitle
	if sub == "" {
		sub = " "
	}
	b.WriteString("  " + styleSubtitle.Render(truncate(sub, inner-2)) + "\n\n")

	bw := barWidth
	if bw > inner-14 {
		bw = inner - 14
	}
	bar := renderProgress(v.SeekVal, v.SeekMax, bw)
	clock := fmt.Sprintf("%s / %s", FormatClock(v.PositionSec), FormatClock(v.DurationSec))
	b.WriteString(bar + " " + styleClock.Render(clock) + "\n")

	if !v.Art.Empty() {
		ref := v.Art.Path
		if ref == "" {
			ref = v.Art.URL
		}
		b.WriteString("\n" + theme.StyleDimmed.Render("art: "+truncate(ref, inner-5)))
	}

	return stylePanel.Width(width - 2).Render(b.String())
}

func renderProgress(val, max int64, width int) string {
	if width < 4 {
		width = 4
	}
	filled := 0
	if max > 0 {
		filled = int(int64(width) * val / max)
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(theme.ColorAccent).Render(bar)
}

// FormatClock renders whole seconds as m:ss, hours rolled into minutes the
// way music players display long tracks.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
