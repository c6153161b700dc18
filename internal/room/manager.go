package room

import (
	"context"
	"sync"
	"time"

	"github.com/herohde/shogiserver/internal/shogi"
	"github.com/seekerror/logw"
)

// Manager owns the in-memory room registry: one Room actor per active
// match, keyed by room id. Grounded on pkg/engine/engine.go's
// mutex-guarded single-resource style, generalized to a map since the
// server hosts many concurrent rooms rather than one engine instance.
type Manager struct {
	defaults Settings
	bc       Broadcaster
	store    Persister

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewManager creates an empty room registry. bc may be nil and supplied
// later via SetBroadcaster, since the broadcaster (the websocket
// transport) and the manager are constructed in a cycle at startup.
func NewManager(defaults Settings, bc Broadcaster, store Persister) *Manager {
	return &Manager{defaults: defaults, bc: bc, store: store, rooms: map[string]*Room{}}
}

// SetBroadcaster wires the outbound broadcaster, used once at startup
// after the transport has been constructed from this same Manager.
func (m *Manager) SetBroadcaster(bc Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bc = bc
}

// GetOrCreate returns the existing room for id, or creates a fresh one.
func (m *Manager) GetOrCreate(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r
	}
	r := New(id, m.defaults, m.bc, m.store)
	m.rooms[id] = r
	return r
}

// Get returns the room for id, if any.
func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	return r, ok
}

// Restore loads a previously persisted snapshot into the registry, used
// at server startup to rehydrate rooms found in storage.
func (m *Manager) Restore(id string, snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[id] = Restore(id, snap, m.bc, m.store)
}

// Remove closes and evicts the room for id, if present.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	r, ok := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()

	if ok {
		r.Close()
	}
}

// IsLive reports whether id is a currently registered room with at least
// one seat online, used as the storage layer's GC liveness check so a
// room with connected sessions is never evicted just because its
// snapshot looks stale.
func (m *Manager) IsLive(id string) bool {
	m.mu.Lock()
	r, ok := m.rooms[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	snap := r.buildSnapshot()
	return snap.Seats[shogi.Sente].Online || snap.Seats[shogi.Gote].Online
}

// Count returns the number of currently registered rooms.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// GC periodically evicts rooms that are both idle past idleTimeout and
// have no live (online) seat, until ctx is cancelled. Grounded on the
// teacher's context-driven background goroutines (pkg/engine/engine.go's
// search/ponder loops use the same cancellation idiom).
func (m *Manager) GC(ctx context.Context, interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, idleTimeout)
		}
	}
}

func (m *Manager) sweep(ctx context.Context, idleTimeout time.Duration) {
	// Snapshot the room pointers under the lock, then release it before
	// reading each room's state: buildSnapshot makes a full round trip
	// through that room's mailbox, and holding the registry lock across N
	// such round trips would stall every other Join/Move/GetOrCreate for
	// the duration of the sweep.
	m.mu.Lock()
	rooms := make(map[string]*Room, len(m.rooms))
	for id, r := range m.rooms {
		rooms[id] = r
	}
	m.mu.Unlock()

	var stale []string
	for id, r := range rooms {
		snap := r.buildSnapshot()
		live := snap.Seats[shogi.Sente].Online || snap.Seats[shogi.Gote].Online
		if !live && time.Since(snap.UpdatedAt) > idleTimeout {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}

	m.mu.Lock()
	var evicted []string
	for _, id := range stale {
		if r, ok := m.rooms[id]; ok && r == rooms[id] {
			delete(m.rooms, id)
			evicted = append(evicted, id)
		}
	}
	m.mu.Unlock()

	for _, id := range evicted {
		logw.Infof(ctx, "Room GC: evicting idle room %v with no live sessions", id)
	}
}
