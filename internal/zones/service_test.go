package zones

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/presence"
)

type memStore struct {
	mu     sync.Mutex
	zones  map[string]*domain.Zone
	events []*domain.Event
	health map[string]*domain.HealthRecord
	getErr error // injected GetZone failure
}

func newMemStore() *memStore {
	return &memStore{
		zones:  make(map[string]*domain.Zone),
		health: make(map[string]*domain.HealthRecord),
	}
}

func (m *memStore) SaveZone(ctx context.Context, zone *domain.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *zone
	m.zones[zone.ServerID+"/"+zone.ZoneName] = &cp
	return nil
}

func (m *memStore) GetZone(ctx context.Context, serverID, zoneName string) (*domain.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	z, ok := m.zones[serverID+"/"+zoneName]
	if !ok {
		return nil, fmt.Errorf("zone %s: %w", zoneName, ErrNotFound)
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
	delete(m.zones, serverID+"/"+zoneName)
	return nil
}

func (m *memStore) PutHealth(ctx context.Context, rec *domain.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.health[rec.ServerID+"/"+rec.ZoneName] = &cp
	return nil
}

func (m *memStore) GetHealth(ctx context.Context, serverID, zoneName string) (*domain.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.health[serverID+"/"+zoneName]
	if !ok {
		return nil, fmt.Errorf("health record %s: %w", zoneName, ErrNotFound)
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

type fakeConsole struct {
	mu          sync.Mutex
	createCalls int
	deleteCalls []string
	deleteErr   error
}

var _ console.Client = (*fakeConsole)(nil)

func (f *fakeConsole) ApplyPermissions(ctx context.Context, zoneName string, perms console.Permissions) error {
	return nil
}
func (f *fakeConsole) ApplyColor(ctx context.Context, zoneName, color string) error { return nil }
func (f *fakeConsole) CreateZone(ctx context.Context, zone *domain.Zone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
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
func (f *fakeConsole) ListLiveZones(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeConsole) Close() error                                       { return nil }

func newTestService() (*Service, *memStore, *fakeConsole, *presence.Tracker, chan struct{}) {
	store := newMemStore()
	client := &fakeConsole{}
	tracker := presence.NewTracker()
	trigger := make(chan struct{}, 1)
	svc := NewService(
		store,
		tracker,
		map[string]console.Client{"main": client},
		NewLocks(),
		logger.New("error", false),
		map[string]chan struct{}{"main": trigger},
	)
	return svc, store, client, tracker, trigger
}

func validRequest() CreateRequest {
	return CreateRequest{
		Owner:         "Alice",
		ServerID:      "main",
		Size:          50,
		Position:      domain.Position{X: 100, Y: 10, Z: -250},
		DelaySeconds:  300,
		ExpireSeconds: 126000,
	}
}

func TestCreateZone(t *testing.T) {
	svc, store, client, _, trigger := newTestService()
	ctx := context.Background()

	zone, err := svc.CreateZone(ctx, validRequest())
	if err != nil {
		t.Fatalf("CreateZone failed: %v", err)
	}
	if zone.ZoneName != "ZORP_Alice" {
		t.Errorf("zone name = %q, want ZORP_Alice", zone.ZoneName)
	}
	if zone.ColorOnline != DefaultColorOnline || zone.ColorOffline != DefaultColorOffline {
		t.Error("omitted colors must fall back to defaults")
	}

	if _, err := store.GetZone(ctx, "main", "ZORP_Alice"); err != nil {
		t.Errorf("zone not persisted: %v", err)
	}
	if client.createCalls != 1 {
		t.Errorf("console create calls = %d, want 1", client.createCalls)
	}

	types := store.eventTypes("ZORP_Alice")
	if len(types) != 1 || types[0] != domain.EventCreated {
		t.Errorf("events = %v, want [created]", types)
	}

	select {
	case <-trigger:
	default:
		t.Error("creation must kick the reconciler")
	}
}

func TestCreateZoneRejectsBadConfig(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	req := validRequest()
	req.ExpireSeconds = 0
	if _, err := svc.CreateZone(context.Background(), req); err == nil {
		t.Error("non-positive expire_seconds must be rejected at creation")
	}
}

func TestCreateZoneUnknownServer(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	req := validRequest()
	req.ServerID = "eu2"
	if _, err := svc.CreateZone(context.Background(), req); err == nil {
		t.Error("unknown server must be rejected")
	}
}

func TestCreateZoneRetryIsUpsert(t *testing.T) {
	svc, store, client, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateZone(ctx, validRequest())
	if err != nil {
		t.Fatal(err)
	}

	retry := validRequest()
	retry.Size = 75
	second, err := svc.CreateZone(ctx, retry)
	if err != nil {
		t.Fatalf("retried creation failed: %v", err)
	}

	if second.ZoneName != first.ZoneName {
		t.Errorf("retry created a second zone %q", second.ZoneName)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("retry must keep the original creation time")
	}
	if second.Size != 75 {
		t.Errorf("retry must refresh config, size = %v", second.Size)
	}

	all, _ := store.ListZonesByServer(ctx, "main")
	if len(all) != 1 {
		t.Errorf("%d records after retry, want 1", len(all))
	}
	if client.createCalls != 1 {
		t.Errorf("console create calls = %d, want 1 (no duplicate remote create)", client.createCalls)
	}
}

func TestPresenceDrivesCountdown(t *testing.T) {
	svc, store, _, tracker, trigger := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}
	drain(trigger)

	now := time.Now()
	tracker.HandleConnect("main", "Alice", now)
	tracker.HandleDisconnect("main", "Alice", now.Add(time.Minute))

	z, err := store.GetZone(ctx, "main", "ZORP_Alice")
	if err != nil {
		t.Fatal(err)
	}
	if z.LastOfflineAt == nil {
		t.Fatal("disconnect must start the offline countdown")
	}
	if !z.LastOfflineAt.Equal(now.Add(time.Minute)) {
		t.Errorf("countdown start = %v, want the disconnect time", z.LastOfflineAt)
	}
	select {
	case <-trigger:
	default:
		t.Error("presence change must kick the reconciler")
	}

	tracker.HandleConnect("main", "Alice", now.Add(2*time.Minute))
	z, err = store.GetZone(ctx, "main", "ZORP_Alice")
	if err != nil {
		t.Fatal(err)
	}
	if z.LastOfflineAt != nil {
		t.Error("reconnect must clear the countdown entirely")
	}

	types := store.eventTypes("ZORP_Alice")
	var reds, greens int
	for _, et := range types {
		switch et {
		case domain.EventStateRed:
			reds++
		case domain.EventStateGreen:
			greens++
		}
	}
	if reds != 1 || greens != 1 {
		t.Errorf("state events = %v, want one red and one green", types)
	}
}

func TestRemoveZone(t *testing.T) {
	svc, store, client, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveZone(ctx, "main", "ZORP_Alice", "admin", "operator"); err != nil {
		t.Fatalf("RemoveZone failed: %v", err)
	}
	if _, err := store.GetZone(ctx, "main", "ZORP_Alice"); err == nil {
		t.Error("zone still in store after removal")
	}
	if len(client.deleteCalls) != 1 {
		t.Errorf("console delete calls = %v, want one", client.deleteCalls)
	}

	// Removing again is a no-op.
	if err := svc.RemoveZone(ctx, "main", "ZORP_Alice", "admin", "operator"); err != nil {
		t.Errorf("second removal must be a no-op, got %v", err)
	}
	if len(client.deleteCalls) != 1 {
		t.Errorf("second removal issued a remote delete: %v", client.deleteCalls)
	}
}

func TestRemoveZoneSurfacesStoreOutage(t *testing.T) {
	svc, store, client, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}
	store.getErr = errors.New("connection refused")

	// A store read failure is not "zone already gone"; it must surface
	// so the caller retries instead of seeing a phantom success.
	if err := svc.RemoveZone(ctx, "main", "ZORP_Alice", "admin", "operator"); err == nil {
		t.Fatal("store outage must surface to the caller")
	}
	if len(client.deleteCalls) != 0 {
		t.Errorf("remote delete issued during store outage: %v", client.deleteCalls)
	}

	store.getErr = nil
	if _, err := store.GetZone(ctx, "main", "ZORP_Alice"); err != nil {
		t.Error("record must survive a removal attempted during a store outage")
	}
}

func TestRemoveZoneKeepsRecordOnRemoteFailure(t *testing.T) {
	svc, store, client, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}
	client.deleteErr = console.ErrTimeout

	if err := svc.RemoveZone(ctx, "main", "ZORP_Alice", "admin", "operator"); err == nil {
		t.Fatal("remote failure must surface to the caller")
	}
	if _, err := store.GetZone(ctx, "main", "ZORP_Alice"); err != nil {
		t.Error("record must survive a failed remote delete so the caller can retry")
	}
}

func TestHandleTeamLeave(t *testing.T) {
	svc, store, _, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, validRequest()); err != nil {
		t.Fatal(err)
	}

	if err := svc.HandleTeamLeave(ctx, "main", "Alice"); err != nil {
		t.Fatalf("HandleTeamLeave failed: %v", err)
	}
	if _, err := store.GetZone(ctx, "main", "ZORP_Alice"); err == nil {
		t.Error("team leave must delete the owner's zone")
	}

	// No zone: nothing to do.
	if err := svc.HandleTeamLeave(ctx, "main", "Bob"); err != nil {
		t.Errorf("team leave without a zone must be a no-op, got %v", err)
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
