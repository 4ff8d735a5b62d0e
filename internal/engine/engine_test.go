package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jellyremote/jellyremote/internal/art"
	"github.com/jellyremote/jellyremote/internal/bridge"
	"github.com/jellyremote/jellyremote/internal/channel"
	"github.com/jellyremote/jellyremote/internal/directory"
	"github.com/jellyremote/jellyremote/internal/jellyfin"
)

// primaryServer fakes the session API: GET /Sessions serves the configured
// list, /Users/Me serves a fixed user, and every other request is recorded.
type primaryServer struct {
	mu       sync.Mutex
	sessions []jellyfin.Session
	posts    []string
	bodies   []string

	srv *httptest.Server
}

func newPrimaryServer(t *testing.T) *primaryServer {
	t.Helper()
	ps := &primaryServer{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Sessions":
			json.NewEncoder(w).Encode(ps.sessions)
		case r.Method == http.MethodGet && r.URL.Path == "/Users/Me":
			json.NewEncoder(w).Encode(map[string]string{"Id": "u1"})
		case r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			ps.posts = append(ps.posts, r.URL.Path+"?"+r.URL.RawQuery)
			ps.bodies = append(ps.bodies, string(body))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *primaryServer) set(sessions ...jellyfin.Session) {
	ps.mu.Lock()
	ps.sessions = sessions
	ps.mu.Unlock()
}

func (ps *primaryServer) lastPost() (path, body string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.posts) == 0 {
		return "", ""
	}
	return ps.posts[len(ps.posts)-1], ps.bodies[len(ps.bodies)-1]
}

func playingSession(id, itemID string, posTicks, durTicks int64, paused bool) jellyfin.Session {
	return jellyfin.Session{
		ID:         id,
		Client:     "Jellyfin Web",
		DeviceName: "Desk",
		PlayState:  &jellyfin.PlayState{IsPaused: paused, PositionTicks: posTicks},
		NowPlayingItem: &jellyfin.NowPlayingItem{
			ID:           itemID,
			Name:         "Song",
			Artists:      []string{"Artist"},
			Album:        "Album",
			RunTimeTicks: durTicks,
		},
	}
}

func newEngine(t *testing.T, serverURL, bridgeURL string, override bool) *Engine {
	t.Helper()
	jf := jellyfin.New(serverURL, "tok", "dev", "test")
	br := bridge.New(bridgeURL, "sec")
	dir := directory.New(jf)
	mgr := art.NewManager(t.TempDir())
	return New(jf, br, dir, mgr, []string{"Musicolet"}, override)
}

func TestClampVolume(t *testing.T) {
	cases := []struct {
		base, delta, want int
	}{
		{98, 5, 100},
		{2, -5, 0},
		{50, 5, 55},
		{50, -5, 45},
		{100, 5, 100},
		{0, -5, 0},
	}
	for _, tc := range cases {
		if got := ClampVolume(tc.base, tc.delta); got != tc.want {
			t.Errorf("ClampVolume(%d, %d) = %d, want %d", tc.base, tc.delta, got, tc.want)
		}
	}
}

func TestRenderPrimary(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set(playingSession("s1", "i1", 1500000000, 3000000000, false))
	e := newEngine(t, ps.srv.URL, "", false)

	v, err := e.Render(context.Background(), false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if v.Mode != channel.Primary {
		t.Fatalf("mode = %v, want primary", v.Mode)
	}
	if !v.HasItem || v.Title != "Song" || v.Subtitle != "Artist" {
		t.Errorf("item = %v %q/%q", v.HasItem, v.Title, v.Subtitle)
	}
	if v.PositionSec != 150 || v.DurationSec != 300 {
		t.Errorf("position = %d/%d, want 150/300", v.PositionSec, v.DurationSec)
	}
	if v.SeekMax != 300 || v.SeekVal != 150 {
		t.Errorf("seek = %d/%d, want 150/300", v.SeekVal, v.SeekMax)
	}
	if v.Paused {
		t.Error("paused, want playing")
	}
	if !strings.Contains(v.Art.URL, "/Items/i1/Images/Primary") {
		t.Errorf("art URL = %q", v.Art.URL)
	}
}

func TestRenderIdleWhenLadderEmpty(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set() // all three directory rungs will come back empty
	e := newEngine(t, ps.srv.URL, "", false)

	v, err := e.Render(context.Background(), false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if v.HasItem || v.Title != "Idle" {
		t.Errorf("view = %v %q, want idle", v.HasItem, v.Title)
	}
	if v.SeekMax != 0 || v.SeekVal != 0 {
		t.Errorf("seek = %d/%d, want 0/0", v.SeekVal, v.SeekMax)
	}
	if !v.Art.Empty() {
		t.Errorf("art = %+v, want empty", v.Art)
	}
}

func TestRenderPrimarySeekClampsToDuration(t *testing.T) {
	ps := newPrimaryServer(t)
	// Position overshoots the reported runtime; the seek value must not.
	ps.set(playingSession("s1", "i1", 4000000000, 3000000000, false))
	e := newEngine(t, ps.srv.URL, "", false)

	v, err := e.Render(context.Background(), false)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if v.SeekVal != v.SeekMax {
		t.Errorf("seek value = %d, want clamped to %d", v.SeekVal, v.SeekMax)
	}
}

func TestRenderBridgeArtReloadPolicy(t *testing.T) {
	var mu sync.Mutex
	np := bridge.NowPlaying{
		HasSession: true,
		IsPlaying:  true,
		Title:      "Track A",
		Artist:     "Artist",
		Album:      "Album",
		PositionMs: 5000,
		DurationMs: 60000,
	}
	artHits := 0
	bs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/nowplaying":
			json.NewEncoder(w).Encode(np)
		case "/art":
			artHits++
			w.Write([]byte("blob"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer bs.Close()

	e := newEngine(t, "http://127.0.0.1:0", bs.URL, true)
	ctx := context.Background()

	render := func() *ViewState {
		t.Helper()
		v, err := e.Render(ctx, false)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		return v
	}
	hits := func() int {
		mu.Lock()
		defer mu.Unlock()
		return artHits
	}

	v := render()
	if v.Mode != channel.Bridge || v.Title != "Track A" || v.Paused {
		t.Fatalf("view = %v %q paused=%v", v.Mode, v.Title, v.Paused)
	}
	if v.PositionSec != 5 || v.DurationSec != 60 {
		t.Errorf("position = %d/%d, want 5/60", v.PositionSec, v.DurationSec)
	}
	if hits() != 1 {
		t.Fatalf("art hits = %d, want 1", hits())
	}
	if v.Art.Path == "" {
		t.Error("no art blob installed")
	}

	// Same track: no refetch.
	render()
	if hits() != 1 {
		t.Errorf("art hits after repeat = %d, want 1", hits())
	}

	// Track change: refetch.
	mu.Lock()
	np.Title = "Track B"
	mu.Unlock()
	render()
	if hits() != 2 {
		t.Errorf("art hits after track change = %d, want 2", hits())
	}

	// Explicit force: refetch even though nothing changed.
	if _, err := e.Render(ctx, true); err != nil {
		t.Fatalf("Render force: %v", err)
	}
	if hits() != 3 {
		t.Errorf("art hits after force = %d, want 3", hits())
	}

	// Session gone: idle view, art released.
	mu.Lock()
	np.HasSession = false
	mu.Unlock()
	v = render()
	if v.HasItem || v.Title != "Idle" || !v.Art.Empty() {
		t.Errorf("idle view = %+v", v)
	}

	// Session back with the same track: the reset key forces a reload.
	mu.Lock()
	np.HasSession = true
	mu.Unlock()
	render()
	if hits() != 4 {
		t.Errorf("art hits after session return = %d, want 4", hits())
	}
}

func TestRenderBridgeKeepsStateWhenArtFails(t *testing.T) {
	var mu sync.Mutex
	artBroken := true
	artHits := 0
	bs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/nowplaying":
			json.NewEncoder(w).Encode(bridge.NowPlaying{
				HasSession: true,
				IsPlaying:  true,
				Title:      "Track A",
				Artist:     "Artist",
				PositionMs: 5000,
				DurationMs: 60000,
			})
		case "/art":
			artHits++
			if artBroken {
				http.Error(w, "no art", http.StatusInternalServerError)
				return
			}
			w.Write([]byte("blob"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer bs.Close()

	e := newEngine(t, "http://127.0.0.1:0", bs.URL, true)
	ctx := context.Background()

	// Track state must survive the failing art endpoint.
	v, err := e.Render(ctx, false)
	if err != nil {
		t.Fatalf("Render with broken art endpoint: %v", err)
	}
	if !v.HasItem || v.Title != "Track A" || v.PositionSec != 5 || v.DurationSec != 60 {
		t.Errorf("track state lost: %+v", v)
	}
	if !v.Art.Empty() {
		t.Errorf("art = %+v, want empty while endpoint is down", v.Art)
	}

	// The reload key stays unset on failure, so the next pass retries and
	// picks the blob up once the endpoint recovers.
	mu.Lock()
	artBroken = false
	mu.Unlock()
	v, err = e.Render(ctx, false)
	if err != nil {
		t.Fatalf("Render after art recovery: %v", err)
	}
	if v.Art.Path == "" {
		t.Error("art blob not installed after recovery")
	}
	mu.Lock()
	hits := artHits
	mu.Unlock()
	if hits != 2 {
		t.Errorf("art hits = %d, want a retry after the failure", hits)
	}
}

func TestSendCommandPrimaryToggle(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set(playingSession("s1", "i1", 0, 3000000000, false))
	e := newEngine(t, ps.srv.URL, "", false)
	ctx := context.Background()

	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.SendCommand(ctx, CmdToggle); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if path, _ := ps.lastPost(); !strings.HasPrefix(path, "/Sessions/s1/Playing/Pause") {
		t.Errorf("post = %q, want Pause", path)
	}

	ps.set(playingSession("s1", "i1", 0, 3000000000, true))
	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.SendCommand(ctx, CmdToggle); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if path, _ := ps.lastPost(); !strings.HasPrefix(path, "/Sessions/s1/Playing/Unpause") {
		t.Errorf("post = %q, want Unpause", path)
	}

	if err := e.SendCommand(ctx, CmdNext); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if path, _ := ps.lastPost(); !strings.HasPrefix(path, "/Sessions/s1/Playing/NextTrack") {
		t.Errorf("post = %q, want NextTrack", path)
	}
}

func TestSendCommandBridgeRoutes(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	bs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer bs.Close()

	e := newEngine(t, "http://127.0.0.1:0", bs.URL, true)
	ctx := context.Background()
	for _, kind := range []Command{CmdToggle, CmdPrev, CmdNext} {
		if err := e.SendCommand(ctx, kind); err != nil {
			t.Fatalf("SendCommand(%d): %v", kind, err)
		}
	}
	if err := e.AdjustVolume(ctx, 5); err != nil {
		t.Fatalf("AdjustVolume up: %v", err)
	}
	if err := e.AdjustVolume(ctx, -5); err != nil {
		t.Fatalf("AdjustVolume down: %v", err)
	}
	if err := e.Seek(ctx, 42); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	mu.Lock()
	got := strings.Join(paths, " ")
	mu.Unlock()
	want := "/toggle /prev /next /volup /voldown /seek"
	if got != want {
		t.Errorf("paths = %q, want %q", got, want)
	}
}

func TestAdjustVolumePrimary(t *testing.T) {
	ps := newPrimaryServer(t)
	level := 98
	s := playingSession("s1", "i1", 0, 3000000000, false)
	s.VolumeLevel = &level
	ps.set(s)
	e := newEngine(t, ps.srv.URL, "", false)
	ctx := context.Background()

	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.AdjustVolume(ctx, 5); err != nil {
		t.Fatalf("AdjustVolume: %v", err)
	}
	path, body := ps.lastPost()
	if !strings.HasPrefix(path, "/Sessions/s1/Command") {
		t.Errorf("post = %q, want Command", path)
	}
	if !strings.Contains(body, `"Volume":"100"`) {
		t.Errorf("body = %q, want clamped level 100", body)
	}

	// No reported level: fall back to the last level this client applied.
	s.VolumeLevel = nil
	ps.set(s)
	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.AdjustVolume(ctx, -5); err != nil {
		t.Fatalf("AdjustVolume: %v", err)
	}
	if _, body := ps.lastPost(); !strings.Contains(body, `"Volume":"95"`) {
		t.Errorf("body = %q, want level 95", body)
	}
}

func TestSeekPrimarySendsTicks(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set(playingSession("s1", "i1", 0, 3000000000, false))
	e := newEngine(t, ps.srv.URL, "", false)
	ctx := context.Background()

	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.Seek(ctx, 150); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	path, _ := ps.lastPost()
	if !strings.Contains(path, "/Sessions/s1/Playing/Seek") || !strings.Contains(path, "positionTicks=1500000000") {
		t.Errorf("post = %q, want Seek with positionTicks=1500000000", path)
	}
}

func TestCommandsWithoutSessionFail(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set()
	e := newEngine(t, ps.srv.URL, "", false)
	ctx := context.Background()

	if _, err := e.Render(ctx, false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := e.SendCommand(ctx, CmdToggle); err == nil {
		t.Error("SendCommand with no session: want error")
	}
	if err := e.AdjustVolume(ctx, 5); err == nil {
		t.Error("AdjustVolume with no session: want error")
	}
	if err := e.Seek(ctx, 10); err == nil {
		t.Error("Seek with no session: want error")
	}
}

func TestOverrideForcesBridgeMode(t *testing.T) {
	ps := newPrimaryServer(t)
	ps.set(playingSession("s1", "i1", 0, 3000000000, false))
	e := newEngine(t, ps.srv.URL, "", false)

	if _, err := e.Render(context.Background(), false); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if e.Mode() != channel.Primary {
		t.Fatalf("mode = %v, want primary", e.Mode())
	}
	e.SetOverride(true)
	if e.Mode() != channel.Bridge {
		t.Errorf("mode after override = %v, want bridge", e.Mode())
	}
	e.SetOverride(false)
	if e.Mode() != channel.Primary {
		t.Errorf("mode after clearing override = %v, want primary", e.Mode())
	}
}
