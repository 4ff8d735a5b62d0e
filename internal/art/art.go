// Package art tracks the currently displayed artwork resource. Server art
// is a plain URL; bridge art arrives as a blob and is spooled to a temp
// file that must be removed when superseded. At most one blob file is ever
// live.
package art

import (
	"os"
	"sync"
)

// Handle names the installed artwork resource. Exactly one of URL and Path
// is set; the zero Handle is the empty/placeholder state.
type Handle struct {
	// URL is a remote art reference. Nothing local to release.
	URL string
	// Path is the spool file for blob art, owned by the Manager.
	Path string
}

// Empty reports whether the handle refers to no artwork.
func (h Handle) Empty() bool {
	return h.URL == "" && h.Path == ""
}

// Manager owns the handle lifecycle.
type Manager struct {
	mu      sync.Mutex
	dir     string
	current Handle
}

// NewManager creates a manager spooling blob art into dir ("" means the
// system temp dir).
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Manager{dir: dir}
}

// InstallURL replaces the current artwork with a remote reference,
// releasing any held blob first.
func (m *Manager) InstallURL(url string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.current = Handle{URL: url}
	return m.current
}

// InstallBlob replaces the current artwork with a fresh blob. The previous
// blob is released before the new one is assigned, so a write failure
// leaves the manager empty rather than stale.
func (m *Manager) InstallBlob(data []byte) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.current = Handle{}

	f, err := os.CreateTemp(m.dir, "art-*.img")
	if err != nil {
		return Handle{}, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return Handle{}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return Handle{}, err
	}
	m.current = Handle{Path: f.Name()}
	return m.current, nil
}

// Clear releases any held blob and resets to the placeholder state. Safe to
// call repeatedly; always invoked on shutdown.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	m.current = Handle{}
}

// Current returns the installed handle.
func (m *Manager) Current() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) releaseLocked() {
	if m.current.Path != "" {
		os.Remove(m.current.Path)
		m.current.Path = ""
	}
}
