// Package remote defines the error taxonomy shared by both control channels.
package remote

import "fmt"

// Error is a non-success response from the media server or the bridge.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Body)
}

// ConfigError reports a required setting that is missing. It is shown to the
// user and never retried.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return e.Missing + " not set"
}
