// Package config loads and saves the persisted remote settings.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultClientName   = "JellyRemote TUI"
	DefaultPollInterval = time.Second

	// DeviceLabel is the fixed device label sent with every credential.
	DeviceLabel = "TUI"

	// Version is the protocol version string sent to the server.
	Version = "1.0.0"
)

// Mode selects which control surface the UI starts on.
type Mode string

const (
	ModeServer Mode = "jf"
	ModeBridge Mode = "bridge"
)

// Settings is the persisted configuration record. It survives restarts and
// is rewritten wholesale on every save.
type Settings struct {
	ServerURL    string        `yaml:"server_url"`
	Token        string        `yaml:"token"`
	DeviceID     string        `yaml:"device_id"`
	ClientName   string        `yaml:"client_name"`
	BridgeURL    string        `yaml:"bridge_url"`
	BridgeSecret string        `yaml:"bridge_secret"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SessionID    string        `yaml:"session_id"`
	ForceBridge  bool          `yaml:"force_bridge"`

	// BridgeClients lists client/device name fragments that are never
	// controllable through the server API (matched case-insensitively).
	BridgeClients []string `yaml:"bridge_clients"`

	Mode Mode `yaml:"mode"`
}

func defaultSettings() *Settings {
	return &Settings{
		ClientName:    DefaultClientName,
		PollInterval:  DefaultPollInterval,
		BridgeClients: []string{"Musicolet"},
		Mode:          ModeServer,
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "jellyremote", "config.yaml"), nil
}

// Load reads settings from path, applying defaults for absent fields. A
// missing file yields defaults with a freshly generated device ID, persisted
// immediately so the identity is stable across restarts.
func Load(path string) (*Settings, error) {
	cfg := defaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// first run, fall through to normalization + save
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	changed := cfg.normalize()
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		changed = true
	}
	if changed || os.IsNotExist(err) {
		if saveErr := Save(path, cfg); saveErr != nil {
			return nil, saveErr
		}
	}
	return cfg, nil
}

// Save writes the settings record to path, creating parent directories.
func Save(path string, cfg *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// normalize trims URLs and restores defaults for emptied fields. It reports
// whether anything changed.
func (c *Settings) normalize() bool {
	changed := false
	if u := strings.TrimRight(strings.TrimSpace(c.ServerURL), "/"); u != c.ServerURL {
		c.ServerURL = u
		changed = true
	}
	if u := strings.TrimRight(strings.TrimSpace(c.BridgeURL), "/"); u != c.BridgeURL {
		c.BridgeURL = u
		changed = true
	}
	if c.ClientName == "" {
		c.ClientName = DefaultClientName
		changed = true
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
		changed = true
	}
	if c.Mode != ModeServer && c.Mode != ModeBridge {
		c.Mode = ModeServer
		changed = true
	}
	return changed
}
