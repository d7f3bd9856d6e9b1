package zones

import "sync"

// Locks provides per-zone mutual exclusion. Every component that
// mutates a zone record (presence handler, reconciler, sweeper,
// operator commands) takes the zone's lock first, so a single zone is
// never written concurrently while unrelated zones proceed in
// parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock for a zone and returns its release function.
// Lock entries are never evicted; the table is bounded by the number
// of zones ever seen, which is small.
func (l *Locks) Lock(serverID, zoneName string) func() {
	key := serverID + "/" + zoneName

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
