package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/zones"
)

// memStore is an in-memory zones.Store for scheduler tests.
type memStore struct {
	mu         sync.Mutex
	zones      map[string]*domain.Zone
	health     map[string]*domain.HealthRecord
	events     []*domain.Event
	getZoneErr error // injected GetZone failure
}

func newMemStore() *memStore {
	return &memStore{
		zones:  make(map[string]*domain.Zone),
		health: make(map[string]*domain.HealthRecord),
	}
}

func key(serverID, zoneName string) string { return serverID + "/" + zoneName }

func (m *memStore) SaveZone(ctx context.Context, zone *domain.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *zone
	m.zones[key(zone.ServerID, zone.ZoneName)] = &cp
	return nil
}

func (m *memStore) GetZone(ctx context.Context, serverID, zoneName string) (*domain.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getZoneErr != nil {
		return nil, m.getZoneErr
	}
	z, ok := m.zones[key(serverID, zoneName)]
	if !ok {
		return nil, fmt.Errorf("zone %s: %w", zoneName, zones.ErrNotFound)
	}
	cp := *z
	return &cp, nil
}

func (m *memStore) ListZonesByServer(ctx context.Context, serverID string) ([]*domain.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Zone
	for _, z := range m.zones {
		if z.ServerID == serverID {
			cp := *z
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) DeleteZone(ctx context.Context, serverID, zoneName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zones, key(serverID, zoneName))
	delete(m.health, key(serverID, zoneName))
	return nil
}

func (m *memStore) PutHealth(ctx context.Context, rec *domain.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.health[key(rec.ServerID, rec.ZoneName)] = &cp
	return nil
}

func (m *memStore) GetHealth(ctx context.Context, serverID, zoneName string) (*domain.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.health[key(serverID, zoneName)]
	if !ok {
		return nil, fmt.Errorf("health record %s: %w", zoneName, zones.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) AppendEvent(ctx context.Context, ev *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.events = append(m.events, &cp)
	return nil
}

func (m *memStore) ListEvents(ctx context.Context, serverID, zoneName string, limit int) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Event
	for _, ev := range m.events {
		if ev.ServerID == serverID && ev.ZoneName == zoneName {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) eventTypes(zoneName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.events {
		if ev.ZoneName == zoneName {
			out = append(out, ev.EventType)
		}
	}
	return out
}

// fakeConsole is a scriptable console.Client.
type fakeConsole struct {
	mu          sync.Mutex
	permCalls   []string
	colorCalls  []string
	deleteCalls []string

	permErr   map[string]error // per zone
	colorErr  map[string]error
	deleteErr error
	live      []string
	listErr   error
}

var _ console.Client = (*fakeConsole)(nil)

func newFakeConsole() *fakeConsole {
	return &fakeConsole{
		permErr:  make(map[string]error),
		colorErr: make(map[string]error),
	}
}

func (f *fakeConsole) ApplyPermissions(ctx context.Context, zoneName string, perms console.Permissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.permErr[zoneName]; err != nil {
		return err
	}
	f.permCalls = append(f.permCalls, zoneName)
	return nil
}

func (f *fakeConsole) ApplyColor(ctx context.Context, zoneName, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.colorErr[zoneName]; err != nil {
		return err
	}
	f.colorCalls = append(f.colorCalls, zoneName)
	return nil
}

func (f *fakeConsole) CreateZone(ctx context.Context, zone *domain.Zone) error {
	return nil
}

func (f *fakeConsole) DeleteZone(ctx context.Context, zoneName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, zoneName)
	return nil
}

func (f *fakeConsole) ListLiveZones(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.live...), nil
}

func (f *fakeConsole) Close() error { return nil }

func (f *fakeConsole) commandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.permCalls) + len(f.colorCalls) + len(f.deleteCalls)
}
