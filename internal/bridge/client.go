// Package bridge talks to the auxiliary control endpoint used for players
// the media server cannot command directly. Every request carries the shared
// secret; artwork arrives as a raw blob because the bridge has no stable
// per-track art URL.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jellyremote/jellyremote/internal/remote"
)

// NowPlaying is the bridge's playback snapshot. The client label/package
// doubles as part of the track-change fingerprint since the bridge exposes
// no item identifiers.
type NowPlaying struct {
	HasSession    bool   `json:"hasSession"`
	IsPlaying     bool   `json:"isPlaying"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	PositionMs    int64  `json:"positionMs"`
	DurationMs    int64  `json:"durationMs"`
	ClientLabel   string `json:"clientLabel"`
	ClientPackage string `json:"clientPackage"`
}

// Fingerprint is the composite track-change key for bridge mode.
func (np *NowPlaying) Fingerprint() string {
	return np.Title + "|" + np.Artist + "|" + np.Album + "|" + np.ClientPackage
}

// Client issues shared-secret requests to the bridge.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client

	now func() time.Time
}

// New creates a bridge client. An empty baseURL is allowed here; every call
// fails fast with a ConfigError until one is configured.
func New(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// Configured reports whether a bridge endpoint has been set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Command posts a bare transport command path such as "/toggle" or "/volup".
func (c *Client) Command(ctx context.Context, path string) error {
	if c.baseURL == "" {
		return &remote.ConfigError{Missing: "bridge URL"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Secret", c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &remote.Error{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// SeekMs posts an absolute seek in milliseconds.
func (c *Client) SeekMs(ctx context.Context, ms int64) error {
	return c.Command(ctx, "/seek?ms="+strconv.FormatInt(ms, 10))
}

// FetchNowPlaying reads the bridge's current playback state.
func (c *Client) FetchNowPlaying(ctx context.Context) (*NowPlaying, error) {
	if c.baseURL == "" {
		return nil, &remote.ConfigError{Missing: "bridge URL"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nowplaying", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Secret", c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &remote.Error{Status: resp.StatusCode, Body: string(body)}
	}
	var np NowPlaying
	if err := json.NewDecoder(resp.Body).Decode(&np); err != nil {
		return nil, err
	}
	return &np, nil
}

// FetchArt downloads the current artwork blob. The timestamp parameter
// defeats intermediary caches; the bridge serves whatever is playing now.
func (c *Client) FetchArt(ctx context.Context) ([]byte, error) {
	if c.baseURL == "" {
		return nil, &remote.ConfigError{Missing: "bridge URL"}
	}
	u := fmt.Sprintf("%s/art?ts=%d", c.baseURL, c.now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Secret", c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &remote.Error{Status: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}
