package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name      string
		serverURL string
		wantBase  string
	}{
		{"plain http", "http://media.local:8096", "ws://media.local:8096/socket"},
		{"https maps to wss", "https://media.example.org", "wss://media.example.org/socket"},
		{"base path preserved", "https://example.org/jellyfin", "wss://example.org/jellyfin/socket"},
		{"trailing slash trimmed", "http://media.local:8096/", "ws://media.local:8096/socket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.serverURL, "tok", "dev-1", "JellyRemote TUI")
			if err != nil {
				t.Fatalf("BuildURL: %v", err)
			}
			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("parse result: %v", err)
			}
			base := u.Scheme + "://" + u.Host + u.Path
			if base != tt.wantBase {
				t.Errorf("base = %q, want %q", base, tt.wantBase)
			}
			q := u.Query()
			if q.Get("api_key") != "tok" || q.Get("deviceId") != "dev-1" {
				t.Errorf("missing identity query params: %v", q)
			}
			if q.Get("version") == "" || q.Get("client") == "" {
				t.Errorf("missing version/client params: %v", q)
			}
		})
	}
}

func TestListenSkippedWithoutConfig(t *testing.T) {
	ctx := context.Background()
	if cmd := New("", "tok", "d", "c").Listen(ctx); cmd != nil {
		t.Error("missing server URL must skip connecting entirely")
	}
	if cmd := New("http://media.local", "", "d", "c").Listen(ctx); cmd != nil {
		t.Error("missing token must skip connecting entirely")
	}
}

func TestFeedLifecycle(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "tok" {
			t.Errorf("missing api_key on %s", r.URL)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			MessageType string `json:"MessageType"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub.MessageType

		// Garbage and unknown types must be dropped silently.
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"ForceKeepAlive"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageType":"Sessions","Data":[{"Id":"s1","UserName":"ada"}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := New(srv.URL, "tok", "dev-1", "JellyRemote TUI")
	cmd := f.Listen(ctx)
	if cmd == nil {
		t.Fatal("Listen returned nil with full config")
	}

	if _, ok := cmd().(OpenedMsg); !ok {
		t.Fatal("expected OpenedMsg")
	}
	if f.State() != Open {
		t.Fatalf("state = %s, want open", f.State())
	}
	if got := <-subscribed; got != "SessionsStart" {
		t.Errorf("subscribe message = %q, want SessionsStart", got)
	}

	msg := f.ReadLoop(ctx)()
	sessions, ok := msg.(SessionsMsg)
	if !ok {
		t.Fatalf("expected SessionsMsg, got %T", msg)
	}
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].ID != "s1" {
		t.Errorf("unexpected payload: %+v", sessions.Sessions)
	}

	// The handler returns and closes the socket; the next read observes it.
	msg = f.ReadLoop(ctx)()
	if _, ok := msg.(ClosedMsg); !ok {
		t.Fatalf("expected ClosedMsg, got %T", msg)
	}
	if f.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", f.State())
	}
}

func TestRedialWaitsOutBackoffAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}

	// The server accepts and subscribes, then drops the connection right
	// away: the worst case for a reconnect loop with no delay.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub struct {
			MessageType string `json:"MessageType"`
		}
		conn.ReadJSON(&sub)
		conn.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := New(srv.URL, "tok", "dev-1", "JellyRemote TUI")
	if _, ok := f.Listen(ctx)().(OpenedMsg); !ok {
		t.Fatal("expected OpenedMsg")
	}
	if _, ok := f.ReadLoop(ctx)().(ClosedMsg); !ok {
		t.Fatal("expected ClosedMsg")
	}

	// The redial after a drop must wait at least the backoff floor even
	// though the server accepts instantly.
	start := time.Now()
	if _, ok := f.Listen(ctx)().(OpenedMsg); !ok {
		t.Fatal("expected OpenedMsg on redial")
	}
	if elapsed := time.Since(start); elapsed < backoffFloor {
		t.Errorf("redial after drop took %v, want at least %v", elapsed, backoffFloor)
	}
}
