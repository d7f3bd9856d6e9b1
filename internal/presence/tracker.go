package presence

import (
	"sync"
	"time"
)

// Handler receives online/offline transitions. Handlers are invoked
// synchronously in event order for a given player, so subscribers see
// no reordering of connect/disconnect events.
type Handler func(serverID, player string, online bool, at time.Time)

// Tracker keeps the current online/offline status of players per game
// server, fed by raw connect/disconnect events.
type Tracker struct {
	mu       sync.RWMutex
	online   map[string]map[string]bool // serverID -> player -> online
	seq      map[string]*sync.Mutex     // serverID/player -> ingest ordering
	handlers []Handler
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		online: make(map[string]map[string]bool),
		seq:    make(map[string]*sync.Mutex),
	}
}

// Subscribe registers a handler for presence transitions. Must be
// called before events start flowing; registration is not synchronized
// against ingestion.
func (t *Tracker) Subscribe(h Handler) {
	t.handlers = append(t.handlers, h)
}

// HandleConnect ingests a "player connected" event.
func (t *Tracker) HandleConnect(serverID, player string, at time.Time) {
	t.transition(serverID, player, true, at)
}

// HandleDisconnect ingests a "player disconnected" event.
func (t *Tracker) HandleDisconnect(serverID, player string, at time.Time) {
	t.transition(serverID, player, false, at)
}

func (t *Tracker) transition(serverID, player string, online bool, at time.Time) {
	// One mutex per player spans the state change and the handler
	// calls, so concurrent ingests for the same player reach the
	// subscribers in ingest order. Other players are not serialized.
	seq := t.sequencer(serverID, player)
	seq.Lock()
	defer seq.Unlock()

	t.mu.Lock()
	players, ok := t.online[serverID]
	if !ok {
		players = make(map[string]bool)
		t.online[serverID] = players
	}
	was, seen := players[player]
	players[player] = online
	t.mu.Unlock()

	// Duplicate events (two connects in a row) are not transitions.
	if seen && was == online {
		return
	}

	for _, h := range t.handlers {
		h(serverID, player, online, at)
	}
}

func (t *Tracker) sequencer(serverID, player string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := serverID + "/" + player
	m, ok := t.seq[key]
	if !ok {
		m = &sync.Mutex{}
		t.seq[key] = m
	}
	return m
}

// IsOnline reports whether a player is currently connected to the
// given server. Players never seen are offline.
func (t *Tracker) IsOnline(serverID, player string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	players, ok := t.online[serverID]
	if !ok {
		return false
	}
	return players[player]
}

// OnlineCount returns the number of players currently online on a
// server.
func (t *Tracker) OnlineCount(serverID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, online := range t.online[serverID] {
		if online {
			count++
		}
	}
	return count
}
