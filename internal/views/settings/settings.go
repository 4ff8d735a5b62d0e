// Package settings renders the connection settings form overlay.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/config"
	"github.com/jellyremote/jellyremote/internal/theme"
)

const panelWidth = 60

// Field indices into the input slice.
const (
	fieldServerURL = iota
	fieldToken
	fieldBridgeURL
	fieldBridgeSecret
	fieldClientName
	fieldPollInterval
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Server URL",
	"API token",
	"Bridge URL",
	"Bridge secret",
	"Client name",
	"Poll interval",
}

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(15)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleNotice = lipgloss.NewStyle().
			Foreground(theme.ColorWarning)
)

// Model holds the settings form state.
type Model struct {
	inputs [fieldCount]textinput.Model
	focus  int

	// Notice shows save or connection-test feedback under the form.
	Notice string
}

// New builds the form prefilled from the persisted settings.
func New(cfg *config.Settings) Model {
	m := Model{}
	values := [fieldCount]string{
		cfg.ServerURL,
		cfg.Token,
		cfg.BridgeURL,
		cfg.BridgeSecret,
		cfg.ClientName,
		cfg.PollInterval.String(),
	}
	for i := 0; i < fieldCount; i++ {
		in := textinput.New()
		in.SetValue(values[i])
		in.CharLimit = 256
		in.Width = panelWidth - 22
		if i == fieldToken || i == fieldBridgeSecret {
			in.EchoMode = textinput.EchoPassword
		}
		m.inputs[i] = in
	}
	m.inputs[0].Focus()
	return m
}

// Update routes key events to the focused input.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			m.setFocus((m.focus + 1) % fieldCount)
			return m, nil
		case "shift+tab", "up":
			m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

// Apply writes the form values into cfg. The poll interval must parse as a
// duration; everything else is taken verbatim.
func (m Model) Apply(cfg *config.Settings) error {
	iv, err := time.ParseDuration(strings.TrimSpace(m.inputs[fieldPollInterval].Value()))
	if err != nil {
		return fmt.Errorf("poll interval: %w", err)
	}
	if iv <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(m.inputs[fieldServerURL].Value()), "/")
	cfg.Token = strings.TrimSpace(m.inputs[fieldToken].Value())
	cfg.BridgeURL = strings.TrimRight(strings.TrimSpace(m.inputs[fieldBridgeURL].Value()), "/")
	cfg.BridgeSecret = strings.TrimSpace(m.inputs[fieldBridgeSecret].Value())
	cfg.ClientName = strings.TrimSpace(m.inputs[fieldClientName].Value())
	if cfg.ClientName == "" {
		cfg.ClientName = config.DefaultClientName
	}
	cfg.PollInterval = iv
	return nil
}

// View renders the form panel.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("Settings") + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")
	for i := 0; i < fieldCount; i++ {
		b.WriteString(styleLabel.Render(fieldLabels[i]+":") + m.inputs[i].View() + "\n")
	}
	if m.Notice != "" {
		b.WriteString("\n" + styleNotice.Render(m.Notice) + "\n")
	}
	b.WriteString("\n" + styleFooter.Render("tab:next field  ctrl+s:save  ctrl+t:test  esc:close"))
	return stylePanel.Width(panelWidth).Render(b.String())
}
