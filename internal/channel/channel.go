// Package channel decides, per call, whether a command or state read routes
// through the server API or the bridge. The decision is never cached:
// capabilities and the override flag can change between any two calls.
package channel

import (
	"strings"

	"github.com/jellyremote/jellyremote/internal/jellyfin"
)

// Mode names the control path for one call.
type Mode int

const (
	Primary Mode = iota
	Bridge
)

func (m Mode) String() string {
	if m == Bridge {
		return "bridge"
	}
	return "primary"
}

// mediaControlCommand is the capability that marks a session as commandable
// through the server API.
const mediaControlCommand = "PlayState"

// Resolve picks the channel for the given session. bridgeClients holds
// client/device name fragments, matched case-insensitively, for players
// known to ignore server commands.
//
// An empty capability set means the server reported nothing, not that the
// session is uncontrollable; only an explicit set lacking media control
// forces the bridge.
func Resolve(s *jellyfin.Session, override bool, bridgeClients []string) Mode {
	if override || s == nil {
		return Bridge
	}
	if len(s.SupportedCommands) > 0 && !hasCommand(s.SupportedCommands, mediaControlCommand) {
		return Bridge
	}
	for _, pattern := range bridgeClients {
		if pattern == "" {
			continue
		}
		p := strings.ToLower(pattern)
		if strings.Contains(strings.ToLower(s.Client), p) ||
			strings.Contains(strings.ToLower(s.DeviceName), p) {
			return Bridge
		}
	}
	return Primary
}

func hasCommand(cmds []string, name string) bool {
	for _, c := range cmds {
		if c == name {
			return true
		}
	}
	return false
}
