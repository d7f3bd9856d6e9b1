package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/zones"
)

// SweeperConfig tunes one server's discovery and dedup sweep.
type SweeperConfig struct {
	// Interval between sweeps.
	Interval time.Duration

	// Adopted zones get these lifecycle values, since their real
	// configuration is unknowable from the zone name alone.
	AdoptExpireSeconds int
	AdoptDelaySeconds  int
	AdoptSize          float64
}

// Sweeper cross-checks the store against the game server's live zone
// list: removes orphaned records, adopts zones the store has never
// seen, and merges duplicate records per owner.
type Sweeper struct {
	serverID string
	store    zones.Store
	client   console.Client
	locks    *zones.Locks
	logger   logger.Logger
	cfg      SweeperConfig

	stopCh           chan struct{}
	trigger          chan struct{}
	reconcileTrigger chan struct{}
	now              func() time.Time
}

// NewSweeper creates a sweeper for one server. reconcileTrigger kicks
// the server's reconciler after a sweep changed the store, so adopted
// zones get an immediate pass.
func NewSweeper(
	serverID string,
	store zones.Store,
	client console.Client,
	locks *zones.Locks,
	log logger.Logger,
	cfg SweeperConfig,
	trigger chan struct{},
	reconcileTrigger chan struct{},
) *Sweeper {
	if cfg.AdoptExpireSeconds <= 0 {
		cfg.AdoptExpireSeconds = 126000 // 35h
	}
	if cfg.AdoptSize <= 0 {
		cfg.AdoptSize = 50
	}

	return &Sweeper{
		serverID:         serverID,
		store:            store,
		client:           client,
		locks:            locks,
		logger:           log,
		cfg:              cfg,
		stopCh:           make(chan struct{}),
		trigger:          trigger,
		reconcileTrigger: reconcileTrigger,
		now:              time.Now,
	}
}

// Start begins the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Sweep(ctx); err != nil {
					s.logger.Error("sweep failed",
						logger.String("server_id", s.serverID),
						logger.Error(err))
				}
			case <-s.trigger:
				s.logger.Info("manual sweep triggered",
					logger.String("server_id", s.serverID))
				if err := s.Sweep(ctx); err != nil {
					s.logger.Error("manual sweep failed",
						logger.String("server_id", s.serverID),
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// Sweep runs one discovery and dedup cycle.
func (s *Sweeper) Sweep(ctx context.Context) error {
	live, err := s.client.ListLiveZones(ctx)
	if err != nil {
		// Untrusted snapshot: a timeout never drives deletions.
		s.logger.Warn("live zone list unavailable, skipping sweep",
			logger.String("server_id", s.serverID),
			logger.Error(err))
		return nil
	}
	if len(live) == 0 {
		// An empty snapshot is indistinguishable from a broken query;
		// never mass-delete on it.
		s.logger.Debug("live zone list empty, skipping sweep",
			logger.String("server_id", s.serverID))
		return nil
	}

	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	stored, err := s.store.ListZonesByServer(ctx, s.serverID)
	if err != nil {
		return fmt.Errorf("list stored zones: %w", err)
	}

	removed := s.removeOrphans(ctx, stored, liveSet)
	adopted := s.adoptMissing(ctx, stored, liveSet)
	merged := s.mergeDuplicates(ctx)

	if removed+adopted+merged > 0 {
		s.logger.Info("sweep completed",
			logger.String("server_id", s.serverID),
			logger.Int("orphans_removed", removed),
			logger.Int("zones_adopted", adopted),
			logger.Int("duplicates_merged", merged))
		s.kickReconciler()
	}
	return nil
}

// removeOrphans drops store records whose zone no longer exists on the
// game server. No remote command is needed; the zone is already gone.
func (s *Sweeper) removeOrphans(ctx context.Context, stored []*domain.Zone, liveSet map[string]bool) int {
	removed := 0
	for _, z := range stored {
		if liveSet[z.ZoneName] {
			continue
		}

		unlock := s.locks.Lock(s.serverID, z.ZoneName)
		// Re-check inside the lock; the zone may have been recreated.
		if _, err := s.store.GetZone(ctx, s.serverID, z.ZoneName); err != nil {
			unlock()
			continue
		}
		if err := s.store.DeleteZone(ctx, s.serverID, z.ZoneName); err != nil {
			unlock()
			s.logger.Warn("failed to remove orphaned zone record",
				logger.String("zone", z.ZoneName),
				logger.Error(err))
			continue
		}
		s.appendEvent(ctx, z.ZoneName, domain.EventDeleted, "", map[string]any{
			"reason": "orphaned",
		})
		unlock()

		s.logger.Info("orphaned zone record removed",
			logger.String("zone", z.ZoneName),
			logger.String("server_id", s.serverID))
		removed++
	}
	return removed
}

// adoptMissing inserts store records for live zones the store does not
// know, with the owner inferred from the zone name convention. Zones
// not following the convention belong to someone else and are left
// alone.
func (s *Sweeper) adoptMissing(ctx context.Context, stored []*domain.Zone, liveSet map[string]bool) int {
	known := make(map[string]bool, len(stored))
	owners := make(map[string]bool, len(stored))
	for _, z := range stored {
		known[z.ZoneName] = true
		if z.Owner != "" && z.CurrentState != domain.StateDeleted {
			owners[z.Owner] = true
		}
	}

	adopted := 0
	for name := range liveSet {
		if known[name] {
			continue
		}
		owner, ok := domain.OwnerFromZoneName(name)
		if !ok {
			continue
		}
		if owners[owner] {
			// The owner already has a record under another name; this
			// live name is a legacy alias. Adopting it would let dedup
			// displace the real record and reset its countdown.
			s.logger.Debug("skipping legacy alias of tracked zone",
				logger.String("zone", name),
				logger.String("owner", owner),
				logger.String("server_id", s.serverID))
			continue
		}

		unlock := s.locks.Lock(s.serverID, name)
		// Adopt only confirmed absences; a store failure is not one.
		if _, err := s.store.GetZone(ctx, s.serverID, name); !errors.Is(err, zones.ErrNotFound) {
			unlock()
			continue
		}

		now := s.now()
		zone := &domain.Zone{
			ZoneName:      name,
			Owner:         owner,
			ServerID:      s.serverID,
			Size:          s.cfg.AdoptSize,
			ColorOnline:   zones.DefaultColorOnline,
			ColorOffline:  zones.DefaultColorOffline,
			DelaySeconds:  s.cfg.AdoptDelaySeconds,
			ExpireSeconds: s.cfg.AdoptExpireSeconds,
			CreatedAt:     now,
			CurrentState:  domain.StatePending,
		}
		if err := s.store.SaveZone(ctx, zone); err != nil {
			unlock()
			s.logger.Warn("failed to adopt live zone",
				logger.String("zone", name),
				logger.Error(err))
			continue
		}
		// A zero score marks the zone for the next reconciliation pass.
		_ = s.store.PutHealth(ctx, &domain.HealthRecord{
			ZoneName:      name,
			ServerID:      s.serverID,
			HealthScore:   0,
			Issues:        []string{"adopted from live list, awaiting reconciliation"},
			LastCheckedAt: now,
		})
		s.appendEvent(ctx, name, domain.EventAdopted, owner, map[string]any{
			"inferred_owner": owner,
		})
		unlock()

		s.logger.Info("live zone adopted",
			logger.String("zone", name),
			logger.String("owner", owner),
			logger.String("server_id", s.serverID))
		adopted++
	}
	return adopted
}

// mergeDuplicates enforces the one-non-deleted-zone-per-owner
// invariant: when retried creation requests or legacy names left
// multiple records for the same owner, the most recently created one
// survives.
func (s *Sweeper) mergeDuplicates(ctx context.Context) int {
	stored, err := s.store.ListZonesByServer(ctx, s.serverID)
	if err != nil {
		return 0
	}

	byOwner := make(map[string][]*domain.Zone)
	for _, z := range stored {
		if z.Owner == "" || z.CurrentState == domain.StateDeleted {
			continue
		}
		byOwner[z.Owner] = append(byOwner[z.Owner], z)
	}

	merged := 0
	for owner, group := range byOwner {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.After(group[j].CreatedAt)
		})
		keep := group[0]

		for _, dup := range group[1:] {
			unlock := s.locks.Lock(s.serverID, dup.ZoneName)
			if err := s.store.DeleteZone(ctx, s.serverID, dup.ZoneName); err != nil {
				unlock()
				s.logger.Warn("failed to delete duplicate zone record",
					logger.String("zone", dup.ZoneName),
					logger.Error(err))
				continue
			}
			s.appendEvent(ctx, dup.ZoneName, domain.EventMergedDuplicate, owner, map[string]any{
				"kept": keep.ZoneName,
			})
			unlock()

			s.logger.Info("duplicate zone record merged",
				logger.String("owner", owner),
				logger.String("removed", dup.ZoneName),
				logger.String("kept", keep.ZoneName))
			merged++
		}
	}
	return merged
}

func (s *Sweeper) kickReconciler() {
	if s.reconcileTrigger == nil {
		return
	}
	select {
	case s.reconcileTrigger <- struct{}{}:
	default:
	}
}

func (s *Sweeper) appendEvent(ctx context.Context, zoneName, eventType, actor string, details map[string]any) {
	ev := &domain.Event{
		ZoneName:    zoneName,
		EventType:   eventType,
		ActorPlayer: actor,
		ServerID:    s.serverID,
		Details:     details,
		Timestamp:   s.now(),
	}
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to append event",
			logger.String("zone", zoneName),
			logger.Error(err))
	}
}
