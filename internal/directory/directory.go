// Package directory caches the list of controllable sessions and resolves
// which one the user is controlling.
package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jellyremote/jellyremote/internal/jellyfin"
)

// activeWindow is the trailing window for the last rung of the query ladder.
const activeWindow = 24 * time.Hour

// Lister is the subset of the server API the directory needs. Satisfied by
// *jellyfin.Client.
type Lister interface {
	Sessions(ctx context.Context) ([]jellyfin.Session, error)
	SessionsControllableBy(ctx context.Context, userID string) ([]jellyfin.Session, error)
	SessionsActiveWithin(ctx context.Context, window time.Duration) ([]jellyfin.Session, error)
	Me(ctx context.Context) (*jellyfin.User, error)
}

// Directory owns the session cache. Entries are replaced wholesale on every
// refresh or pushed update, never mutated in place.
type Directory struct {
	lister Lister

	mu         sync.Mutex
	cache      map[string]*jellyfin.Session
	order      []string
	selectedID string
}

// New creates an empty directory backed by the given lister.
func New(lister Lister) *Directory {
	return &Directory{
		lister: lister,
		cache:  make(map[string]*jellyfin.Session),
	}
}

// Refresh queries the server through a three-rung fallback ladder: the
// unfiltered list, then sessions controllable by the authenticated user,
// then sessions active within the trailing window. Each rung runs only when
// the previous one returned nothing or failed; the first non-empty result
// wins, and the last rung's result is accepted even when empty.
func (d *Directory) Refresh(ctx context.Context) ([]*jellyfin.Session, error) {
	sessions, err := d.lister.Sessions(ctx)
	if err != nil || len(sessions) == 0 {
		sessions, err = d.controllableByMe(ctx)
	}
	if err != nil || len(sessions) == 0 {
		sessions, err = d.lister.SessionsActiveWithin(ctx, activeWindow)
	}
	if err != nil {
		return nil, err
	}
	d.replace(sessions)
	return d.All(), nil
}

func (d *Directory) controllableByMe(ctx context.Context) ([]jellyfin.Session, error) {
	me, err := d.lister.Me(ctx)
	if err != nil {
		return nil, err
	}
	return d.lister.SessionsControllableBy(ctx, me.ID)
}

// ReplaceAll installs a pushed session list directly, without any server
// read. Used when the push feed delivers a Sessions payload.
func (d *Directory) ReplaceAll(sessions []jellyfin.Session) {
	d.replace(sessions)
}

// replace rebuilds the cache and order, then re-resolves the selection.
// The ladder's network reads happen unlocked; only this swap takes the lock.
func (d *Directory) replace(sessions []jellyfin.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string]*jellyfin.Session, len(sessions))
	d.order = d.order[:0]

	// Stable sort: sessions with playing content first.
	sorted := make([]jellyfin.Session, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NowPlayingItem != nil && sorted[j].NowPlayingItem == nil
	})

	for i := range sorted {
		s := sorted[i]
		d.cache[s.ID] = &s
		d.order = append(d.order, s.ID)
	}
	d.resolveSelection()
}

// resolveSelection keeps the previous selection when it still exists, else
// falls back to the first playing session, else the first session, else none.
func (d *Directory) resolveSelection() {
	if d.selectedID != "" {
		if _, ok := d.cache[d.selectedID]; ok {
			return
		}
	}
	for _, id := range d.order {
		if d.cache[id].NowPlayingItem != nil {
			d.selectedID = id
			return
		}
	}
	if len(d.order) > 0 {
		d.selectedID = d.order[0]
		return
	}
	d.selectedID = ""
}

// Select makes the given session current. An ID that is not in the cache
// falls back through the usual resolution order, except before the first
// refresh: with no data yet a persisted selection is kept until sessions
// arrive.
func (d *Directory) Select(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selectedID = id
	if len(d.cache) > 0 {
		d.resolveSelection()
	}
}

// SelectedID returns the current selection, "" when none resolves.
func (d *Directory) SelectedID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectedID
}

// Selected returns the cached snapshot for the current selection, nil when
// none resolves.
func (d *Directory) Selected() *jellyfin.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selectedID == "" {
		return nil
	}
	return d.cache[d.selectedID]
}

// Get returns the cached snapshot for an ID.
func (d *Directory) Get(id string) *jellyfin.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache[id]
}

// All returns the cached sessions in display order.
func (d *Directory) All() []*jellyfin.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*jellyfin.Session, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.cache[id])
	}
	return out
}
