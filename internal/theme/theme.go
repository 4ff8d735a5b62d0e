// Package theme provides the Lip Gloss color palette and reusable styles
// for the JellyRemote TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Playback colors.
var (
	ColorPlaying = lipgloss.Color("#22c55e")
	ColorPaused  = lipgloss.Color("#d97706")
	ColorIdle    = lipgloss.Color("#4b5563")
	ColorAccent  = lipgloss.Color("#a855f7")
)

// Connection colors.
var (
	ColorLive    = lipgloss.Color("#22c55e")
	ColorPolling = lipgloss.Color("#d97706")
	ColorOffline = lipgloss.Color("#dc2626")
)

// Channel badge colors.
var (
	ColorServerBadge = lipgloss.Color("#3b82f6")
	ColorBridgeBadge = lipgloss.Color("#06b6d4")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)

// TransportGlyph returns the glyph for a playback state.
func TransportGlyph(hasItem, paused bool) string {
	switch {
	case !hasItem:
		return "■"
	case paused:
		return "❚❚"
	default:
		return "▶"
	}
}

// TransportColor returns the color for a playback state.
func TransportColor(hasItem, paused bool) lipgloss.Color {
	switch {
	case !hasItem:
		return ColorIdle
	case paused:
		return ColorPaused
	default:
		return ColorPlaying
	}
}

// ChannelBadge returns a colored badge string for a control channel name.
func ChannelBadge(channel string) string {
	switch channel {
	case "primary":
		return lipgloss.NewStyle().Foreground(ColorServerBadge).Render("[JF]")
	case "bridge":
		return lipgloss.NewStyle().Foreground(ColorBridgeBadge).Render("[BR]")
	default:
		return lipgloss.NewStyle().Foreground(ColorDimmed).Render("[?]")
	}
}

// ConnectionColor returns the color for a feed state: live push, polling
// fallback, or neither.
func ConnectionColor(pushOpen, polling bool) lipgloss.Color {
	switch {
	case pushOpen:
		return ColorLive
	case polling:
		return ColorPolling
	default:
		return ColorOffline
	}
}
