package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jellyremote/jellyremote/internal/art"
	"github.com/jellyremote/jellyremote/internal/bridge"
	"github.com/jellyremote/jellyremote/internal/channel"
	"github.com/jellyremote/jellyremote/internal/config"
	"github.com/jellyremote/jellyremote/internal/directory"
	"github.com/jellyremote/jellyremote/internal/engine"
	"github.com/jellyremote/jellyremote/internal/feed"
	"github.com/jellyremote/jellyremote/internal/jellyfin"
	"github.com/jellyremote/jellyremote/internal/theme"
	"github.com/jellyremote/jellyremote/internal/views/debug"
	"github.com/jellyremote/jellyremote/internal/views/detail"
	"github.com/jellyremote/jellyremote/internal/views/nowplaying"
	"github.com/jellyremote/jellyremote/internal/views/sessions"
	"github.com/jellyremote/jellyremote/internal/views/settings"
	"github.com/jellyremote/jellyremote/internal/views/status"
)

const seekStep = 10 // seconds per seek keypress

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlaySessions
	OverlaySettings
	OverlayDetail
	OverlayDebug
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     *config.Settings
	cfgPath string

	eng  *engine.Engine
	push *feed.Feed
	jf   *jellyfin.Client
	arts *art.Manager

	keys   KeyMap
	width  int
	height int

	view    *engine.ViewState
	overlay Overlay

	statusBar status.Model
	playing   nowplaying.Model
	picker    sessions.Model
	form      settings.Model
	info      detail.Model
	log       debug.Model

	// pollGen invalidates scheduled ticks after the interval changes.
	pollGen  int
	pushOpen bool
}

// --- internal messages ---

type pollTickMsg struct{ gen int }

type renderedMsg struct {
	view *engine.ViewState
	err  error
}

type cmdDoneMsg struct {
	label string
	err   error
}

type connTestMsg struct {
	server string
	err    error
}

// New creates the root model from persisted settings. cfgPath is where
// settings edits are saved back.
func New(cfg *config.Settings, cfgPath string) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		cfgPath:   cfgPath,
		arts:      art.NewManager(""),
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		playing:   nowplaying.New(),
		picker:    sessions.New(),
		log:       debug.New(),
	}
	m.buildClients()
	if cfg.SessionID != "" {
		m.eng.Select(cfg.SessionID)
	}
	return m
}

// buildClients constructs the transport stack from the current settings.
// Called at startup and again after a settings save.
func (m *Model) buildClients() {
	override := m.cfg.ForceBridge || m.cfg.Mode == config.ModeBridge
	m.jf = jellyfin.New(m.cfg.ServerURL, m.cfg.Token, m.cfg.DeviceID, m.cfg.ClientName)
	br := bridge.New(m.cfg.BridgeURL, m.cfg.BridgeSecret)
	dir := directory.New(m.jf)
	m.eng = engine.New(m.jf, br, dir, m.arts, m.cfg.BridgeClients, override)
	m.push = feed.New(m.cfg.ServerURL, m.cfg.Token, m.cfg.DeviceID, m.cfg.ClientName)
}

// Init starts the push connection and the polling loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.push.Listen(m.ctx),
		m.renderCmd(true),
		m.schedulePoll(),
	)
}

func (m Model) renderCmd(forceArt bool) tea.Cmd {
	eng := m.eng
	ctx := m.ctx
	return func() tea.Msg {
		v, err := eng.Render(ctx, forceArt)
		return renderedMsg{view: v, err: err}
	}
}

func (m Model) schedulePoll() tea.Cmd {
	gen := m.pollGen
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

func (m Model) commandCmd(kind engine.Command, label string) tea.Cmd {
	eng := m.eng
	ctx := m.ctx
	return func() tea.Msg {
		return cmdDoneMsg{label: label, err: eng.SendCommand(ctx, kind)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.playing.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case feed.OpenedMsg:
		m.pushOpen = true
		m.eng.SetPushOpen(true)
		m.log.Add("ws", "push feed open")
		// A full render picks up whatever changed while disconnected.
		return m, tea.Batch(m.push.ReadLoop(m.ctx), m.renderCmd(false))

	case feed.ClosedMsg:
		m.pushOpen = false
		m.eng.SetPushOpen(false)
		if msg.Err != nil {
			m.log.Add("ws", fmt.Sprintf("push feed closed: %v", msg.Err))
		} else {
			m.log.Add("ws", "push feed closed")
		}
		// Polling covers the gap immediately, then the feed redials.
		return m, tea.Batch(m.renderCmd(false), m.push.Listen(m.ctx))

	case feed.SessionsMsg:
		m.eng.ApplySessions(msg.Sessions)
		if !m.eng.Override() && m.eng.Mode() == channel.Primary {
			m.applyView(m.eng.RenderFromCache(false))
		}
		m.syncPicker()
		return m, m.push.ReadLoop(m.ctx)

	case pollTickMsg:
		if msg.gen != m.pollGen {
			return m, nil
		}
		// Push delivery replaces polling on the primary channel; the bridge
		// has no push feed, so it always polls.
		if m.pushOpen && !m.eng.Override() && m.eng.Mode() == channel.Primary {
			return m, m.schedulePoll()
		}
		return m, tea.Batch(m.renderCmd(false), m.schedulePoll())

	case renderedMsg:
		if msg.err != nil {
			m.log.Add("poll", fmt.Sprintf("render failed: %v", msg.err))
			m.statusBar.Notice = "connection error"
			return m, nil
		}
		m.applyView(msg.view)
		m.statusBar.Notice = ""
		m.syncPicker()
		return m, nil

	case cmdDoneMsg:
		if msg.err != nil {
			m.log.Add("err", fmt.Sprintf("%s failed: %v", msg.label, msg.err))
			m.statusBar.Notice = msg.label + " failed"
			return m, nil
		}
		m.log.Add("cmd", msg.label)
		m.statusBar.Notice = msg.label
		return m, m.renderCmd(false)

	case connTestMsg:
		if msg.err != nil {
			m.form.Notice = fmt.Sprintf("connection failed: %v", msg.err)
		} else {
			m.form.Notice = "connected to " + msg.server
		}
		return m, nil
	}

	if m.overlay == OverlaySettings {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applyView installs a fresh render and refreshes the status bar.
func (m *Model) applyView(v *engine.ViewState) {
	m.view = v
	m.playing.State = v
	m.statusBar.SetConnection(m.pushOpen, !m.pushOpen)
	m.statusBar.Channel = m.eng.Mode().String()
	if s := m.eng.Selected(); s != nil {
		m.statusBar.Session = s.DisplayName()
	} else {
		m.statusBar.Session = ""
	}
}

func (m *Model) syncPicker() {
	m.picker.SetSessions(m.eng.Sessions(), m.eng.SelectedID())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case OverlaySessions:
		return m.handleSessionsKey(msg)
	case OverlaySettings:
		return m.handleSettingsKey(msg)
	case OverlayDetail:
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Info) {
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayDebug:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.log.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.log.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.eng.Shutdown()
		m.push.Close()
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		return m, m.commandCmd(engine.CmdToggle, "play/pause")

	case key.Matches(msg, m.keys.Prev):
		return m, m.commandCmd(engine.CmdPrev, "previous")

	case key.Matches(msg, m.keys.Next):
		return m, m.commandCmd(engine.CmdNext, "next")

	case key.Matches(msg, m.keys.VolUp):
		return m, m.volumeCmd(5)

	case key.Matches(msg, m.keys.VolDown):
		return m, m.volumeCmd(-5)

	case key.Matches(msg, m.keys.SeekBack):
		return m, m.seekCmd(-seekStep)

	case key.Matches(msg, m.keys.SeekFwd):
		return m, m.seekCmd(seekStep)

	case key.Matches(msg, m.keys.Sessions):
		m.syncPicker()
		m.overlay = OverlaySessions
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.form = settings.New(m.cfg)
		m.overlay = OverlaySettings
		return m, nil

	case key.Matches(msg, m.keys.Bridge):
		return m.toggleBridge()

	case key.Matches(msg, m.keys.Info):
		m.info = detail.New(m.eng.Selected(), m.eng.Mode().String())
		m.overlay = OverlayDetail
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.renderCmd(true)
	}

	return m, nil
}

func (m Model) handleSessionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Sessions):
		m.overlay = OverlayNone
	case key.Matches(msg, m.keys.Up):
		m.picker.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.picker.MoveDown()
	case key.Matches(msg, m.keys.Enter):
		if s := m.picker.Current(); s != nil {
			m.eng.Select(s.ID)
			m.cfg.SessionID = s.ID
			m.persistConfig()
		}
		m.overlay = OverlayNone
		return m, m.renderCmd(true)
	}
	return m, nil
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.overlay = OverlayNone
		return m, nil
	case "ctrl+s":
		return m.saveSettings()
	case "ctrl+t":
		return m, m.testConnectionCmd()
	}
	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

// saveSettings persists the form and rebuilds the transport stack so the new
// endpoints take effect without a restart.
func (m Model) saveSettings() (tea.Model, tea.Cmd) {
	if err := m.form.Apply(m.cfg); err != nil {
		m.form.Notice = err.Error()
		return m, nil
	}
	m.persistConfig()
	m.push.Close()
	m.buildClients()
	m.pollGen++
	m.overlay = OverlayNone
	m.log.Add("cmd", "settings saved")
	return m, tea.Batch(m.push.Listen(m.ctx), m.renderCmd(true), m.schedulePoll())
}

// testConnectionCmd probes the server named in the form without saving.
func (m Model) testConnectionCmd() tea.Cmd {
	trial := *m.cfg
	if err := m.form.Apply(&trial); err != nil {
		notice := err.Error()
		return func() tea.Msg { return connTestMsg{err: fmt.Errorf("%s", notice)} }
	}
	ctx := m.ctx
	probe := jellyfin.New(trial.ServerURL, trial.Token, trial.DeviceID, trial.ClientName)
	return func() tea.Msg {
		info, err := probe.GetPublicInfo(ctx)
		if err != nil {
			return connTestMsg{err: err}
		}
		return connTestMsg{server: info.ServerName}
	}
}

func (m Model) toggleBridge() (tea.Model, tea.Cmd) {
	next := !m.eng.Override()
	m.eng.SetOverride(next)
	m.cfg.ForceBridge = next
	if next {
		m.cfg.Mode = config.ModeBridge
	} else {
		m.cfg.Mode = config.ModeServer
	}
	m.persistConfig()
	m.log.Add("cmd", "channel override: "+m.eng.Mode().String())
	return m, m.renderCmd(true)
}

func (m *Model) persistConfig() {
	if m.cfgPath == "" {
		return
	}
	if err := config.Save(m.cfgPath, m.cfg); err != nil {
		m.log.Add("err", fmt.Sprintf("config save failed: %v", err))
	}
}

func (m Model) volumeCmd(delta int) tea.Cmd {
	eng := m.eng
	ctx := m.ctx
	return func() tea.Msg {
		return cmdDoneMsg{label: "volume", err: eng.AdjustVolume(ctx, delta)}
	}
}

func (m Model) seekCmd(delta int64) tea.Cmd {
	if m.view == nil || !m.view.HasItem {
		return nil
	}
	target := m.view.PositionSec + delta
	if target < 0 {
		target = 0
	}
	if target > m.view.DurationSec {
		target = m.view.DurationSec
	}
	eng := m.eng
	ctx := m.ctx
	return func() tea.Msg {
		return cmdDoneMsg{label: "seek", err: eng.Seek(ctx, target)}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlaySessions:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.picker.View())
	case OverlaySettings:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.form.View())
	case OverlayDetail:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.info.View())
	case OverlayDebug:
		return lipgloss.JoinVertical(lipgloss.Left, m.statusBar.View(), m.log.View(m.width, m.height))
	}

	help := theme.StyleDimmed.Render("  space:play/pause  p/n:track  +/-:volume  [/]:seek  s:sessions  b:bridge  o:settings  d:debug  q:quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.playing.View(),
		help,
	)
}
