package zones

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/presence"
)

// ErrUnknownServer is returned for commands naming a server this
// service does not monitor.
var ErrUnknownServer = errors.New("unknown server")

// CreateRequest is a zone-creation command from the operator front-end.
type CreateRequest struct {
	Owner          string          `json:"owner"`
	ServerID       string          `json:"server_id"`
	Size           float64         `json:"size"`
	Position       domain.Position `json:"position"`
	RadiationLevel float64         `json:"radiation_level"`
	MinTeamSize    int             `json:"min_team_size"`
	MaxTeamSize    int             `json:"max_team_size"`
	ColorOnline    string          `json:"color_online,omitempty"`
	ColorOffline   string          `json:"color_offline,omitempty"`
	DelaySeconds   int             `json:"delay_seconds"`
	ExpireSeconds  int             `json:"expire_seconds"`
}

// Defaults applied when a creation request omits colors.
const (
	DefaultColorOnline  = "0,255,0"
	DefaultColorOffline = "255,0,0"
)

// Service owns zone lifecycle commands: creation, explicit removal,
// team-leave signals and presence-driven countdown bookkeeping. All
// zone mutations go through the shared per-zone lock table.
type Service struct {
	store    Store
	tracker  *presence.Tracker
	consoles map[string]console.Client
	locks    *Locks
	logger   logger.Logger
	triggers map[string]chan struct{}
	now      func() time.Time
}

// NewService creates the zone service. triggers maps server IDs to
// their reconciler's manual trigger channel; a presence change kicks
// the trigger so the lockdown applies within one pass instead of
// waiting for the next tick.
func NewService(
	store Store,
	tracker *presence.Tracker,
	consoles map[string]console.Client,
	locks *Locks,
	log logger.Logger,
	triggers map[string]chan struct{},
) *Service {
	s := &Service{
		store:    store,
		tracker:  tracker,
		consoles: consoles,
		locks:    locks,
		logger:   log,
		triggers: triggers,
		now:      time.Now,
	}
	tracker.Subscribe(s.handlePresence)
	return s
}

// CreateZone validates and persists a new zone, creating it on the
// game server. Creation is an idempotent upsert keyed by (server,
// owner): a retried request finds the existing record, refreshes its
// configuration and does not create a duplicate.
func (s *Service) CreateZone(ctx context.Context, req CreateRequest) (*domain.Zone, error) {
	if _, ok := s.consoles[req.ServerID]; req.ServerID == "" || !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, req.ServerID)
	}

	if req.ColorOnline == "" {
		req.ColorOnline = DefaultColorOnline
	}
	if req.ColorOffline == "" {
		req.ColorOffline = DefaultColorOffline
	}

	zone := &domain.Zone{
		ZoneName:       domain.ZoneNameFor(req.Owner),
		Owner:          req.Owner,
		ServerID:       req.ServerID,
		Size:           req.Size,
		Position:       req.Position,
		RadiationLevel: req.RadiationLevel,
		MinTeamSize:    req.MinTeamSize,
		MaxTeamSize:    req.MaxTeamSize,
		ColorOnline:    req.ColorOnline,
		ColorOffline:   req.ColorOffline,
		DelaySeconds:   req.DelaySeconds,
		ExpireSeconds:  req.ExpireSeconds,
		CreatedAt:      s.now(),
		CurrentState:   domain.StatePending,
	}
	if err := zone.ValidateConfig(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(zone.ServerID, zone.ZoneName)
	defer unlock()

	if existing, ok := s.findOwnerZone(ctx, req.ServerID, req.Owner); ok {
		// Retried creation: refresh config, keep lifecycle fields.
		existing.Size = zone.Size
		existing.Position = zone.Position
		existing.RadiationLevel = zone.RadiationLevel
		existing.MinTeamSize = zone.MinTeamSize
		existing.MaxTeamSize = zone.MaxTeamSize
		existing.ColorOnline = zone.ColorOnline
		existing.ColorOffline = zone.ColorOffline
		existing.DelaySeconds = zone.DelaySeconds
		existing.ExpireSeconds = zone.ExpireSeconds
		if err := s.store.SaveZone(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("zone creation retried, refreshed existing record",
			logger.String("zone", existing.ZoneName),
			logger.String("server_id", existing.ServerID))
		return existing, nil
	}

	if err := s.consoles[req.ServerID].CreateZone(ctx, zone); err != nil {
		return nil, fmt.Errorf("create zone %s on server: %w", zone.ZoneName, err)
	}
	if err := s.store.SaveZone(ctx, zone); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, zone, domain.EventCreated, req.Owner, map[string]any{
		"size":           zone.Size,
		"delay_seconds":  zone.DelaySeconds,
		"expire_seconds": zone.ExpireSeconds,
	})
	s.logger.Info("zone created",
		logger.String("zone", zone.ZoneName),
		logger.String("owner", zone.Owner),
		logger.String("server_id", zone.ServerID))

	s.TriggerReconcile(zone.ServerID)
	return zone, nil
}

// RemoveZone deletes a zone on operator request: remote command, store
// removal, audit event. Removing a zone that no longer exists is a
// no-op. The remote delete must succeed before the record goes away,
// otherwise the caller retries.
func (s *Service) RemoveZone(ctx context.Context, serverID, zoneName, actor, reason string) error {
	client, ok := s.consoles[serverID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownServer, serverID)
	}

	unlock := s.locks.Lock(serverID, zoneName)
	defer unlock()

	zone, err := s.store.GetZone(ctx, serverID, zoneName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil // already gone
		}
		// A store failure is not "already gone": surfacing it keeps
		// the caller retrying instead of reporting a phantom success.
		return fmt.Errorf("read zone %s: %w", zoneName, err)
	}
	if zone.CurrentState == domain.StateDeleted {
		return nil
	}

	if err := client.DeleteZone(ctx, zoneName); err != nil {
		return fmt.Errorf("delete zone %s on server: %w", zoneName, err)
	}
	if err := s.store.DeleteZone(ctx, serverID, zoneName); err != nil {
		return err
	}

	s.appendEvent(ctx, zone, domain.EventDeleted, actor, map[string]any{"reason": reason})
	s.logger.Info("zone removed",
		logger.String("zone", zoneName),
		logger.String("server_id", serverID),
		logger.String("reason", reason))
	return nil
}

// HandleTeamLeave deletes the owner's zone when their team disbands or
// they leave it.
func (s *Service) HandleTeamLeave(ctx context.Context, serverID, owner string) error {
	zone, ok := s.findOwnerZone(ctx, serverID, owner)
	if !ok {
		return nil
	}
	return s.RemoveZone(ctx, serverID, zone.ZoneName, owner, "team_leave")
}

// TriggerReconcile kicks the server's reconciler without waiting for
// the next tick. Non-blocking; a pending trigger is enough.
func (s *Service) TriggerReconcile(serverID string) {
	ch, ok := s.triggers[serverID]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// handlePresence is subscribed to the presence tracker. It stamps or
// clears the offline countdown on the owner's zone and kicks the
// reconciler so enforcement follows promptly.
func (s *Service) handlePresence(serverID, player string, online bool, at time.Time) {
	ctx := context.Background()

	zone, ok := s.findOwnerZone(ctx, serverID, player)
	if !ok {
		return
	}

	unlock := s.locks.Lock(serverID, zone.ZoneName)
	defer unlock()

	// Re-read inside the lock; the record may have moved.
	zone, err := s.store.GetZone(ctx, serverID, zone.ZoneName)
	if err != nil {
		return
	}

	if online {
		if zone.LastOfflineAt == nil {
			return
		}
		// Pause discards the elapsed offline time entirely: the next
		// disconnect restarts the countdown from the beginning.
		zone.LastOfflineAt = nil
		s.appendEvent(ctx, zone, domain.EventStateGreen, player, nil)
	} else {
		if zone.LastOfflineAt != nil {
			return
		}
		offAt := at
		zone.LastOfflineAt = &offAt
		s.appendEvent(ctx, zone, domain.EventStateRed, player, map[string]any{
			"expire_seconds": zone.ExpireSeconds,
		})
	}

	if err := s.store.SaveZone(ctx, zone); err != nil {
		s.logger.Warn("failed to save zone after presence change",
			logger.String("zone", zone.ZoneName),
			logger.Error(err))
		return
	}

	s.logger.Info("presence change recorded",
		logger.String("zone", zone.ZoneName),
		logger.String("player", player),
		logger.Bool("online", online))
	s.TriggerReconcile(serverID)
}

// findOwnerZone returns the owner's non-deleted zone on a server.
func (s *Service) findOwnerZone(ctx context.Context, serverID, owner string) (*domain.Zone, bool) {
	zones, err := s.store.ListZonesByServer(ctx, serverID)
	if err != nil {
		s.logger.Warn("failed to list zones",
			logger.String("server_id", serverID),
			logger.Error(err))
		return nil, false
	}
	for _, z := range zones {
		if z.Owner == owner && z.CurrentState != domain.StateDeleted {
			return z, true
		}
	}
	return nil, false
}

func (s *Service) appendEvent(ctx context.Context, zone *domain.Zone, eventType, actor string, details map[string]any) {
	ev := &domain.Event{
		ZoneName:    zone.ZoneName,
		EventType:   eventType,
		ActorPlayer: actor,
		ServerID:    zone.ServerID,
		Details:     details,
		Timestamp:   s.now(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to append event",
			logger.String("zone", zone.ZoneName),
			logger.String("event_type", eventType),
			logger.Error(err))
	}
}
