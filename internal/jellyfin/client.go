package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jellyremote/jellyremote/internal/config"
	"github.com/jellyremote/jellyremote/internal/remote"
)

// Client issues authenticated requests against the server's session API.
type Client struct {
	baseURL    string
	token      string
	deviceID   string
	clientName string
	http       *http.Client

	// now is swapped in tests to pin cache-bust values.
	now func() time.Time
}

// New creates a client for the given server base URL (no trailing slash).
func New(baseURL, token, deviceID, clientName string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		deviceID:   deviceID,
		clientName: clientName,
		http:       &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// PublicInfo is the unauthenticated server identity record.
type PublicInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

// User identifies the authenticated account.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// GetPublicInfo fetches GET /System/Info/Public.
func (c *Client) GetPublicInfo(ctx context.Context) (*PublicInfo, error) {
	var info PublicInfo
	if err := c.get(ctx, "/System/Info/Public", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Me fetches the authenticated user via GET /Users/Me.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/Users/Me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Sessions fetches the unfiltered session list.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	return c.sessions(ctx, nil)
}

// SessionsControllableBy fetches sessions the given user may control.
func (c *Client) SessionsControllableBy(ctx context.Context, userID string) ([]Session, error) {
	return c.sessions(ctx, url.Values{"ControllableByUserId": {userID}})
}

// SessionsActiveWithin fetches sessions active inside the trailing window.
func (c *Client) SessionsActiveWithin(ctx context.Context, window time.Duration) ([]Session, error) {
	secs := int64(window / time.Second)
	return c.sessions(ctx, url.Values{"ActiveWithinSeconds": {strconv.FormatInt(secs, 10)}})
}

func (c *Client) sessions(ctx context.Context, q url.Values) ([]Session, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	var out []Session
	if err := c.get(ctx, "/Sessions?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pause pauses playback on the session.
func (c *Client) Pause(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/Sessions/"+sessionID+"/Playing/Pause", nil)
}

// Unpause resumes playback on the session.
func (c *Client) Unpause(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/Sessions/"+sessionID+"/Playing/Unpause", nil)
}

// PreviousTrack skips backwards.
func (c *Client) PreviousTrack(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/Sessions/"+sessionID+"/Playing/PreviousTrack", nil)
}

// NextTrack skips forwards.
func (c *Client) NextTrack(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/Sessions/"+sessionID+"/Playing/NextTrack", nil)
}

// Seek moves playback to the given whole-second position.
func (c *Client) Seek(ctx context.Context, sessionID string, positionSeconds int64) error {
	ticks := TicksFromSeconds(positionSeconds)
	path := fmt.Sprintf("/Sessions/%s/Playing/Seek?positionTicks=%d", sessionID, ticks)
	return c.post(ctx, path, nil)
}

// SetVolume sets the session volume. The level must already be clamped to
// [0,100]; the server expects it as a string argument.
func (c *Client) SetVolume(ctx context.Context, sessionID string, level int) error {
	body := map[string]any{
		"Name":      "SetVolume",
		"Arguments": map[string]string{"Volume": strconv.Itoa(level)},
	}
	return c.post(ctx, "/Sessions/"+sessionID+"/Command", body)
}

// ImageURL builds the primary artwork URL for an item, cache-busted because
// the server caches aggressively across track changes.
func (c *Client) ImageURL(itemID string, width, height, quality int) string {
	return fmt.Sprintf("%s/Items/%s/Images/Primary?fillWidth=%d&fillHeight=%d&quality=%d&_=%d",
		c.baseURL, itemID, width, height, quality, c.now().UnixMilli())
}

// authHeader builds the structured credential string. It is attached under
// both header names because servers differ on which one they read.
func (c *Client) authHeader() string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
		c.clientName, config.DeviceLabel, c.deviceID, config.Version, c.token)
}

func (c *Client) setAuth(req *http.Request) {
	auth := c.authHeader()
	req.Header.Set("Authorization", auth)
	req.Header.Set("X-Emby-Authorization", auth)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &remote.Error{Status: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// 204 is the usual success for transport commands.
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &remote.Error{Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
