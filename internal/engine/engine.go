// Package engine merges push events and poll ticks into a single
// now-playing render pipeline, routes commands through the channel the
// selected session needs, and owns the artwork reload policy.
package engine

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/jellyremote/jellyremote/internal/art"
	"github.com/jellyremote/jellyremote/internal/bridge"
	"github.com/jellyremote/jellyremote/internal/channel"
	"github.com/jellyremote/jellyremote/internal/directory"
	"github.com/jellyremote/jellyremote/internal/jellyfin"
	"github.com/jellyremote/jellyremote/internal/remote"
)

// Artwork request parameters for the server image endpoint.
const (
	artWidth   = 300
	artHeight  = 300
	artQuality = 80
)

// Command is a transport command kind.
type Command int

const (
	CmdToggle Command = iota
	CmdPrev
	CmdNext
)

// ViewState is everything the now-playing panel renders. It is rebuilt from
// scratch on every pass; a newer pass simply supersedes an older one.
type ViewState struct {
	Mode     channel.Mode
	HasItem  bool
	Title    string
	Subtitle string
	Paused   bool

	PositionSec int64
	DurationSec int64
	SeekMax     int64
	SeekVal     int64

	Art art.Handle
}

// Idle is the explicit no-session display: never leave stale data up.
func idleView(mode channel.Mode) *ViewState {
	return &ViewState{Mode: mode, Title: "Idle"}
}

// Engine is the sync orchestrator. Fields guarded by mu are read from
// command goroutines; the directory and art manager carry their own locks.
type Engine struct {
	jf  *jellyfin.Client
	br  *bridge.Client
	dir *directory.Directory
	art *art.Manager

	bridgeClients []string

	mu         sync.Mutex
	override   bool
	lastItemID string
	bridgeKey  string
	lastVolume int
	pushOpen   bool
}

// New wires an engine over the two channels. override is the persisted
// bridge-override flag.
func New(jf *jellyfin.Client, br *bridge.Client, dir *directory.Directory, artMgr *art.Manager, bridgeClients []string, override bool) *Engine {
	return &Engine{
		jf:            jf,
		br:            br,
		dir:           dir,
		art:           artMgr,
		bridgeClients: bridgeClients,
		override:      override,
		lastVolume:    100,
	}
}

// Mode resolves the control channel for the current selection. Resolved
// fresh on every call — capability and override can change between calls.
func (e *Engine) Mode() channel.Mode {
	return channel.Resolve(e.dir.Selected(), e.Override(), e.bridgeClients)
}

// Override returns the bridge-override flag.
func (e *Engine) Override() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override
}

// SetOverride flips the bridge-override flag.
func (e *Engine) SetOverride(v bool) {
	e.mu.Lock()
	e.override = v
	e.mu.Unlock()
}

// SetPushOpen records whether the push feed is delivering; the app gates
// its poll timer on this.
func (e *Engine) SetPushOpen(open bool) {
	e.mu.Lock()
	e.pushOpen = open
	e.mu.Unlock()
}

// PushOpen reports whether the push feed is delivering.
func (e *Engine) PushOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pushOpen
}

// Refresh re-queries the session directory through its fallback ladder.
func (e *Engine) Refresh(ctx context.Context) error {
	_, err := e.dir.Refresh(ctx)
	return err
}

// ApplySessions installs a pushed session list. No server read happens:
// the payload already carries everything.
func (e *Engine) ApplySessions(sessions []jellyfin.Session) {
	e.dir.ReplaceAll(sessions)
}

// Sessions returns the cached directory in display order.
func (e *Engine) Sessions() []*jellyfin.Session {
	return e.dir.All()
}

// Selected returns the selected session snapshot, nil when none.
func (e *Engine) Selected() *jellyfin.Session {
	return e.dir.Selected()
}

// SelectedID returns the selected session identifier.
func (e *Engine) SelectedID() string {
	return e.dir.SelectedID()
}

// Select switches the controlled session.
func (e *Engine) Select(id string) {
	e.dir.Select(id)
}

// Render fetches current state over the active channel and derives the full
// display. forceArt bypasses the change-detection art policy.
//
// The directory is refreshed before the channel is resolved: the selector
// reads the selected session, and a stale or empty cache must not decide
// the channel for a pass that is about to replace it.
func (e *Engine) Render(ctx context.Context, forceArt bool) (*ViewState, error) {
	if e.Override() {
		return e.renderBridge(ctx, forceArt)
	}
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	if e.Mode() == channel.Bridge && e.br.Configured() {
		return e.renderBridge(ctx, forceArt)
	}
	return e.renderPrimary(forceArt), nil
}

// RenderFromCache derives the display from the cached directory without any
// server read. Used when a pushed payload just replaced the cache.
func (e *Engine) RenderFromCache(forceArt bool) *ViewState {
	return e.renderPrimary(forceArt)
}

func (e *Engine) renderPrimary(forceArt bool) *ViewState {
	s := e.dir.Selected()
	if s == nil || s.NowPlayingItem == nil {
		e.mu.Lock()
		e.lastItemID = ""
		e.mu.Unlock()
		e.art.Clear()
		return idleView(channel.Primary)
	}

	item := s.NowPlayingItem
	pos := s.PositionSeconds()
	dur := item.DurationSeconds()

	// Art reload only on item change or force; every tick would hammer the
	// image endpoint.
	e.mu.Lock()
	reload := forceArt || item.ID != e.lastItemID
	if reload {
		e.lastItemID = item.ID
	}
	e.mu.Unlock()

	handle := e.art.Current()
	if reload {
		handle = e.art.InstallURL(e.jf.ImageURL(item.ArtItemID(), artWidth, artHeight, artQuality))
	}

	title := item.Name
	if title == "" {
		title = "Unknown"
	}

	return &ViewState{
		Mode:        channel.Primary,
		HasItem:     true,
		Title:       title,
		Subtitle:    item.Subtitle(),
		Paused:      s.Paused(),
		PositionSec: pos,
		DurationSec: dur,
		SeekMax:     dur,
		SeekVal:     minInt64(pos, dur),
		Art:         handle,
	}
}

func (e *Engine) renderBridge(ctx context.Context, forceArt bool) (*ViewState, error) {
	np, err := e.br.FetchNowPlaying(ctx)
	if err != nil {
		return nil, err
	}

	if !np.HasSession {
		e.mu.Lock()
		e.bridgeKey = ""
		e.mu.Unlock()
		e.art.Clear()
		return idleView(channel.Bridge), nil
	}

	title := np.Title
	if title == "" {
		title = np.ClientLabel
	}
	if title == "" {
		title = "Unknown"
	}
	var subParts []string
	if np.Artist != "" {
		subParts = append(subParts, np.Artist)
	}
	if np.Album != "" {
		subParts = append(subParts, np.Album)
	}

	pos := np.PositionMs / 1000
	dur := np.DurationMs / 1000

	// The bridge has no item IDs; the composite fingerprint detects track
	// changes instead.
	key := np.Fingerprint()
	e.mu.Lock()
	reload := forceArt || key != e.bridgeKey
	e.mu.Unlock()

	// Metadata and timing stand on their own; a broken art endpoint must
	// not blank the track state. On failure the reload key stays unset so
	// the next pass retries.
	handle := e.art.Current()
	if reload {
		if data, err := e.br.FetchArt(ctx); err != nil {
			log.Printf("engine: bridge art fetch failed: %v", err)
		} else if h, err := e.art.InstallBlob(data); err != nil {
			log.Printf("engine: art install failed: %v", err)
		} else {
			handle = h
			e.mu.Lock()
			e.bridgeKey = key
			e.mu.Unlock()
		}
	}

	return &ViewState{
		Mode:        channel.Bridge,
		HasItem:     true,
		Title:       title,
		Subtitle:    strings.Join(subParts, " — "),
		Paused:      !np.IsPlaying,
		PositionSec: pos,
		DurationSec: dur,
		SeekMax:     dur,
		SeekVal:     minInt64(pos, dur),
		Art:         handle,
	}, nil
}

// SendCommand routes a transport command through the channel resolved for
// this call.
func (e *Engine) SendCommand(ctx context.Context, kind Command) error {
	if e.Mode() == channel.Bridge {
		switch kind {
		case CmdToggle:
			return e.br.Command(ctx, "/toggle")
		case CmdPrev:
			return e.br.Command(ctx, "/prev")
		default:
			return e.br.Command(ctx, "/next")
		}
	}

	s := e.dir.Selected()
	if s == nil {
		return &remote.ConfigError{Missing: "session"}
	}
	switch kind {
	case CmdToggle:
		// Stale pause flags are tolerated; the next refresh corrects them.
		if s.Paused() {
			return e.jf.Unpause(ctx, s.ID)
		}
		return e.jf.Pause(ctx, s.ID)
	case CmdPrev:
		return e.jf.PreviousTrack(ctx, s.ID)
	default:
		return e.jf.NextTrack(ctx, s.ID)
	}
}

// AdjustVolume nudges the volume by delta. The base is the session's
// reported level when present, else the last level this client applied.
func (e *Engine) AdjustVolume(ctx context.Context, delta int) error {
	if e.Mode() == channel.Bridge {
		if delta > 0 {
			return e.br.Command(ctx, "/volup")
		}
		return e.br.Command(ctx, "/voldown")
	}

	s := e.dir.Selected()
	if s == nil {
		return &remote.ConfigError{Missing: "session"}
	}

	e.mu.Lock()
	base := e.lastVolume
	e.mu.Unlock()
	if s.VolumeLevel != nil {
		base = *s.VolumeLevel
	}
	level := ClampVolume(base, delta)

	if err := e.jf.SetVolume(ctx, s.ID, level); err != nil {
		return err
	}
	e.mu.Lock()
	e.lastVolume = level
	e.mu.Unlock()
	return nil
}

// Seek jumps to an absolute whole-second position.
func (e *Engine) Seek(ctx context.Context, seconds int64) error {
	if e.Mode() == channel.Bridge {
		return e.br.SeekMs(ctx, seconds*1000)
	}
	s := e.dir.Selected()
	if s == nil {
		return &remote.ConfigError{Missing: "session"}
	}
	return e.jf.Seek(ctx, s.ID, seconds)
}

// Shutdown releases held resources; the art invariant covers exit too.
func (e *Engine) Shutdown() {
	e.art.Clear()
}

// ClampVolume applies delta to base and clamps into [0,100].
func ClampVolume(base, delta int) int {
	v := base + delta
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
