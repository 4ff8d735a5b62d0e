// Package feed maintains the persistent WebSocket connection that mirrors
// session-list changes, so the engine can stay current without polling.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/jellyremote/jellyremote/internal/config"
	"github.com/jellyremote/jellyremote/internal/jellyfin"
)

const (
	backoffFloor      = 1 * time.Second
	backoffCeiling    = 30 * time.Second
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// State is the connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Feed owns the push connection, its heartbeat and its reconnect schedule.
type Feed struct {
	serverURL  string
	token      string
	deviceID   string
	clientName string

	mu            sync.Mutex
	writeMu       sync.Mutex // serialises conn writes (subscribe, keepalive)
	conn          *websocket.Conn
	state         State
	heartbeatStop context.CancelFunc
	retry         *backoff.ExponentialBackOff

	// redialDelay is set when an established connection is lost, so the
	// next Listen waits the current backoff interval before dialing. A
	// flapping server then costs at least the floor per cycle instead of
	// spinning dial/subscribe/drop.
	redialDelay bool
}

// New creates a feed for the given server identity. Nothing connects until
// Listen runs.
func New(serverURL, token, deviceID, clientName string) *Feed {
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = backoffFloor
	retry.MaxInterval = backoffCeiling
	retry.Multiplier = 2
	retry.RandomizationFactor = 0
	retry.MaxElapsedTime = 0 // retry forever
	retry.Reset()
	return &Feed{
		serverURL:  serverURL,
		token:      token,
		deviceID:   deviceID,
		clientName: clientName,
		retry:      retry,
	}
}

// --- Bubble Tea messages ---

// OpenedMsg is sent when the push connection is established and subscribed.
type OpenedMsg struct{}

// ClosedMsg is sent when the connection drops; polling takes over.
type ClosedMsg struct{ Err error }

// SessionsMsg delivers a pushed session-list update.
type SessionsMsg struct{ Sessions []jellyfin.Session }

// BuildURL derives the push endpoint from the configured server URL:
// http→ws / https→wss, same host and base path, fixed /socket suffix, with
// credential and device identity in the query.
func BuildURL(serverURL, token, deviceID, clientName string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	basePath := strings.TrimRight(u.Path, "/")

	q := url.Values{}
	q.Set("api_key", token)
	q.Set("deviceId", deviceID)
	q.Set("version", config.Version)
	q.Set("client", clientName)

	return scheme + "://" + u.Host + basePath + "/socket?" + q.Encode(), nil
}

// State returns the current connection state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Listen returns a command that dials the push endpoint, retrying with the
// backoff schedule until connected. With no server URL or token configured
// it returns nil so no retry loop spins on missing settings.
func (f *Feed) Listen(ctx context.Context) tea.Cmd {
	if f.serverURL == "" || f.token == "" {
		return nil
	}
	target, err := BuildURL(f.serverURL, f.token, f.deviceID, f.clientName)
	if err != nil {
		log.Printf("feed: bad server URL: %v", err)
		return nil
	}

	return func() tea.Msg {
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if f.consumeRedialDelay() {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(f.retry.NextBackOff()):
				}
			}

			f.setState(Connecting)
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
			if err != nil {
				f.setState(Disconnected)
				delay := f.retry.NextBackOff()
				log.Printf("feed: dial failed: %v (retry in %v)", err, delay)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				continue
			}

			// Subscribe before the connection is shared with the read loop.
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(map[string]string{"MessageType": "SessionsStart"}); err != nil {
				conn.Close()
				f.markRedialDelay()
				continue
			}

			f.mu.Lock()
			if f.heartbeatStop != nil {
				f.heartbeatStop()
			}
			hbCtx, hbCancel := context.WithCancel(ctx)
			f.conn = conn
			f.state = Open
			f.heartbeatStop = hbCancel
			f.mu.Unlock()
			f.retry.Reset()

			go f.heartbeat(hbCtx, conn)

			return OpenedMsg{}
		}
	}
}

// ReadLoop returns a command that reads pushed messages until the
// connection drops. Malformed payloads and unknown message types are
// silently discarded.
func (f *Feed) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn == nil {
			return ClosedMsg{}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				f.dropConn(conn)
				return ClosedMsg{Err: err}
			}

			var env struct {
				MessageType string          `json:"MessageType"`
				Data        json.RawMessage `json:"Data"`
			}
			if json.Unmarshal(data, &env) != nil {
				continue
			}
			if env.MessageType != "Sessions" {
				continue
			}
			var list []jellyfin.Session
			if json.Unmarshal(env.Data, &list) != nil {
				continue
			}
			return SessionsMsg{Sessions: list}
		}
	}
}

// Close shuts the connection down for good; used on exit.
func (f *Feed) Close() {
	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.state = Closing
	if f.heartbeatStop != nil {
		f.heartbeatStop()
		f.heartbeatStop = nil
	}
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	f.setState(Disconnected)
}

// heartbeat sends KeepAlive for the lifetime of the open connection.
func (f *Feed) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			current := f.conn
			f.mu.Unlock()
			if current != conn {
				return
			}
			f.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteJSON(map[string]string{"MessageType": "KeepAlive"})
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dropConn tears down state after a read failure, stopping the heartbeat
// before anyone observes the closed state. The next redial waits out the
// backoff interval.
func (f *Feed) dropConn(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
		f.state = Disconnected
		f.redialDelay = true
		if f.heartbeatStop != nil {
			f.heartbeatStop()
			f.heartbeatStop = nil
		}
	}
	f.mu.Unlock()
	conn.Close()
}

func (f *Feed) markRedialDelay() {
	f.mu.Lock()
	f.redialDelay = true
	f.mu.Unlock()
}

func (f *Feed) consumeRedialDelay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.redialDelay
	f.redialDelay = false
	return v
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}
