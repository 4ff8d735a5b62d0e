// Package jellyfin is the primary control channel: authenticated reads and
// transport commands against a Jellyfin/Emby-compatible session API. Types
// mirror the server wire format without pulling in a server SDK.
package jellyfin

// TicksPerSecond is the server's native time resolution (100ns ticks).
const TicksPerSecond int64 = 10_000_000

// Session is one playback endpoint known to the server. Snapshots replace
// each other wholesale; nothing mutates a Session in place.
type Session struct {
	ID                string          `json:"Id"`
	UserName          string          `json:"UserName"`
	Client            string          `json:"Client"`
	DeviceName        string          `json:"DeviceName"`
	SupportedCommands []string        `json:"SupportedCommands"`
	VolumeLevel       *int            `json:"VolumeLevel"`
	PlayState         *PlayState      `json:"PlayState"`
	NowPlayingItem    *NowPlayingItem `json:"NowPlayingItem"`
}

// PlayState carries the transport position and pause flag.
type PlayState struct {
	IsPaused      bool  `json:"IsPaused"`
	PositionTicks int64 `json:"PositionTicks"`
}

// NowPlayingItem is the media currently playing on a session.
type NowPlayingItem struct {
	ID           string   `json:"Id"`
	Name         string   `json:"Name"`
	Artists      []string `json:"Artists"`
	Album        string   `json:"Album"`
	SeriesName   string   `json:"SeriesName"`
	AlbumID      string   `json:"AlbumId"`
	RunTimeTicks int64    `json:"RunTimeTicks"`
}

// Paused reports the session's pause flag, false when no play state exists.
func (s *Session) Paused() bool {
	return s.PlayState != nil && s.PlayState.IsPaused
}

// PositionSeconds returns the playback position in whole seconds.
func (s *Session) PositionSeconds() int64 {
	if s.PlayState == nil {
		return 0
	}
	return SecondsFromTicks(s.PlayState.PositionTicks)
}

// DisplayName returns the best human label for the session.
func (s *Session) DisplayName() string {
	name := s.DeviceName
	if name == "" {
		name = s.Client
	}
	if name == "" {
		name = "Unknown"
	}
	return name
}

// DurationSeconds returns the item's runtime in whole seconds.
func (i *NowPlayingItem) DurationSeconds() int64 {
	return SecondsFromTicks(i.RunTimeTicks)
}

// ArtItemID is the identifier used to fetch primary artwork. Album art wins
// over per-track art when the server reports one.
func (i *NowPlayingItem) ArtItemID() string {
	if i.AlbumID != "" {
		return i.AlbumID
	}
	return i.ID
}

// Subtitle picks the secondary display line: first artist, else album, else
// series name.
func (i *NowPlayingItem) Subtitle() string {
	if len(i.Artists) > 0 && i.Artists[0] != "" {
		return i.Artists[0]
	}
	if i.Album != "" {
		return i.Album
	}
	return i.SeriesName
}

// TicksFromSeconds converts whole seconds to server ticks. Pure integer
// arithmetic so large durations round-trip without drift.
func TicksFromSeconds(secs int64) int64 {
	return secs * TicksPerSecond
}

// SecondsFromTicks converts server ticks to whole seconds, truncating.
func SecondsFromTicks(ticks int64) int64 {
	return ticks / TicksPerSecond
}
