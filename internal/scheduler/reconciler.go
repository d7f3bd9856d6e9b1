package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/presence"
	"github.com/rustport/zorp/internal/zones"
)

// ReconcilerConfig tunes one server's reconciliation loop.
type ReconcilerConfig struct {
	// Interval between passes; also the staleness bound after which a
	// healthy zone is re-verified.
	Interval time.Duration

	// TransitionWindow is the grace period after the owner goes
	// offline before lockdown takes effect.
	TransitionWindow time.Duration

	// TransitionColor is the intermediate zone color during the grace
	// window ("r,g,b").
	TransitionColor string

	// BatchSize caps how many zones one pass touches, so a pass never
	// floods the remote console.
	BatchSize int

	// Workers bounds concurrent zone processing within a pass.
	Workers int

	// RepairCooldown is the minimum time between repair attempts on
	// the same zone, so a zone mid-transition is not thrashed.
	RepairCooldown time.Duration

	// MaxRepairFailures is the number of consecutive failed repairs
	// after which a zone is flagged for operator attention instead of
	// retried.
	MaxRepairFailures int
}

// Reconciler drives one server's zones toward their expected state.
// Each pass selects unhealthy or stale zones, recomputes the expected
// state from presence and timers, scores the divergence against the
// last known actual state and issues corrective console commands.
type Reconciler struct {
	serverID string
	store    zones.Store
	client   console.Client
	tracker  *presence.Tracker
	locks    *zones.Locks
	logger   logger.Logger
	cfg      ReconcilerConfig

	stopCh  chan struct{}
	trigger chan struct{}
	now     func() time.Time

	mu          sync.Mutex
	cooldowns   map[string]time.Time
	failures    map[string]int
	lastAttempt map[string]domain.State
}

// errPassAborted marks a server-wide transport failure: the rest of
// the pass is pointless until the console is back.
var errPassAborted = errors.New("pass aborted: console transport down")

// NewReconciler creates a reconciler for one server. trigger is the
// manual kick channel shared with the zone service.
func NewReconciler(
	serverID string,
	store zones.Store,
	client console.Client,
	tracker *presence.Tracker,
	locks *zones.Locks,
	log logger.Logger,
	cfg ReconcilerConfig,
	trigger chan struct{},
) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRepairFailures <= 0 {
		cfg.MaxRepairFailures = 3
	}

	return &Reconciler{
		serverID:    serverID,
		store:       store,
		client:      client,
		tracker:     tracker,
		locks:       locks,
		logger:      log,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		trigger:     trigger,
		now:         time.Now,
		cooldowns:   make(map[string]time.Time),
		failures:    make(map[string]int),
		lastAttempt: make(map[string]domain.State),
	}
}

// Start begins the periodic reconciliation loop.
func (r *Reconciler) Start(ctx context.Context) error {
	if err := r.Pass(ctx); err != nil {
		r.logger.Warn("initial reconciliation pass failed",
			logger.String("server_id", r.serverID),
			logger.Error(err))
	}

	ticker := time.NewTicker(r.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.Pass(ctx); err != nil {
					r.logger.Error("reconciliation pass failed",
						logger.String("server_id", r.serverID),
						logger.Error(err))
				}
			case <-r.trigger:
				if err := r.Pass(ctx); err != nil {
					r.logger.Error("triggered reconciliation pass failed",
						logger.String("server_id", r.serverID),
						logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Pass runs one reconciliation cycle for the server. Zones not reached
// before the pass deadline are picked up next interval.
func (r *Reconciler) Pass(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Interval)
	defer cancel()

	batch, err := r.selectBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	r.logger.Debug("reconciliation pass",
		logger.String("server_id", r.serverID),
		logger.Int("zones", len(batch)))

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, r.cfg.Workers)
		abortMu  sync.Mutex
		aborted  bool
		setAbort = func() {
			abortMu.Lock()
			aborted = true
			abortMu.Unlock()
		}
		isAborted = func() bool {
			abortMu.Lock()
			defer abortMu.Unlock()
			return aborted
		}
	)

	for _, zoneName := range batch {
		if isAborted() || ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			if isAborted() {
				return
			}
			// Per-zone isolation: one zone's failure never blocks its
			// siblings, but a transport failure stops the whole pass.
			if err := r.reconcileZone(ctx, name); err != nil {
				if console.IsTransport(err) {
					setAbort()
					r.logger.Warn("console unreachable, aborting pass",
						logger.String("server_id", r.serverID),
						logger.Error(err))
					return
				}
				r.logger.Warn("zone reconciliation failed",
					logger.String("zone", name),
					logger.Error(err))
			}
		}(zoneName)
	}
	wg.Wait()

	if isAborted() {
		return errPassAborted
	}
	return nil
}

// selectBatch picks zones needing attention: unhealthy first, then
// zones whose last check is older than the interval so even healthy
// zones are periodically re-verified.
func (r *Reconciler) selectBatch(ctx context.Context) ([]string, error) {
	all, err := r.store.ListZonesByServer(ctx, r.serverID)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	now := r.now()
	var unhealthy, stale []string
	for _, z := range all {
		rec, err := r.store.GetHealth(ctx, r.serverID, z.ZoneName)
		switch {
		case err != nil:
			// Never checked.
			unhealthy = append(unhealthy, z.ZoneName)
		case rec.HealthScore < domain.HealthMax:
			unhealthy = append(unhealthy, z.ZoneName)
		case now.Sub(rec.LastCheckedAt) >= r.cfg.Interval:
			stale = append(stale, z.ZoneName)
		}
	}

	batch := append(unhealthy, stale...)
	if len(batch) > r.cfg.BatchSize {
		batch = batch[:r.cfg.BatchSize]
	}
	return batch, nil
}

// reconcileZone processes a single zone under its lock.
func (r *Reconciler) reconcileZone(ctx context.Context, zoneName string) error {
	unlock := r.locks.Lock(r.serverID, zoneName)
	defer unlock()

	// Re-read the record and presence inside the lock so the
	// corrective write reflects the latest known state, not a snapshot
	// taken before the lock was acquired.
	zone, err := r.store.GetZone(ctx, r.serverID, zoneName)
	if err != nil {
		if errors.Is(err, zones.ErrNotFound) {
			return nil // deleted since selection
		}
		return fmt.Errorf("read zone %s: %w", zoneName, err)
	}
	now := r.now()
	online := r.tracker.IsOnline(r.serverID, zone.Owner)

	if err := r.normalizeCountdown(ctx, zone, online, now); err != nil {
		return err
	}

	expected := domain.ExpectedState(zone, online, now, r.cfg.TransitionWindow)
	if expected == domain.StateDeleted {
		return r.deleteExpired(ctx, zone, now)
	}

	rec := r.loadHealth(ctx, zone)
	rec.ExpectedState = expected
	rec.LastCheckedAt = now

	// Pending zones carry no enforcement: nothing to verify yet.
	if !expected.Enforced() {
		rec.ActualState = expected
		rec.HealthScore = domain.HealthMax
		rec.Issues = nil
		return r.store.PutHealth(ctx, rec)
	}

	desired := domain.EnforcementFor(zone, expected, r.cfg.TransitionColor)
	score, issues := domain.ScoreHealth(desired, rec.Actual, rec.ActualKnown)
	rec.HealthScore = score
	rec.Issues = issues

	if score == domain.HealthMax {
		rec.ActualState = expected
		r.resetFailures(zoneName)
		return r.store.PutHealth(ctx, rec)
	}

	if !r.repairAllowed(zoneName, expected, now, rec) {
		return r.store.PutHealth(ctx, rec)
	}

	repairErr := r.applyEnforcement(ctx, zone, desired, rec)
	if repairErr == nil {
		rec.ActualState = expected
		rec.HealthScore = domain.HealthMax
		rec.Issues = nil
		r.resetFailures(zoneName)
		r.stampCooldown(zoneName, now)

		zone.CurrentState = expected
		if err := r.store.SaveZone(ctx, zone); err != nil {
			return err
		}
		r.appendEvent(ctx, zone, domain.EventAutoRepair, map[string]any{
			"state": string(expected),
			"score": score,
		})
		r.logger.Info("zone repaired",
			logger.String("zone", zoneName),
			logger.String("state", string(expected)),
			logger.Int("previous_score", score))
	} else {
		// Failed repairs do not stamp the cool-down, so the next pass
		// may retry sooner; the failure counter bounds how long.
		r.countFailure(zoneName)
		score, issues = domain.ScoreHealth(desired, rec.Actual, rec.ActualKnown)
		rec.HealthScore = score
		rec.Issues = append(issues, fmt.Sprintf("repair failed: %v", repairErr))
	}

	if err := r.store.PutHealth(ctx, rec); err != nil {
		return err
	}
	if repairErr != nil && console.IsTransport(repairErr) {
		return repairErr
	}
	return nil
}

// normalizeCountdown heals the countdown bookkeeping when presence
// events were missed (process restart, dropped event): an offline
// owner gets a countdown, an online owner loses it.
func (r *Reconciler) normalizeCountdown(ctx context.Context, zone *domain.Zone, online bool, now time.Time) error {
	switch {
	case !online && zone.LastOfflineAt == nil:
		offAt := now
		zone.LastOfflineAt = &offAt
	case online && zone.LastOfflineAt != nil:
		zone.LastOfflineAt = nil
	default:
		return nil
	}
	return r.store.SaveZone(ctx, zone)
}

// deleteExpired removes a zone whose continuous-offline budget ran
// out: remote command, store removal, audit event, exactly once. The
// caller already holds the zone lock and verified the record exists
// and is not deleted, which is the idempotency guard.
func (r *Reconciler) deleteExpired(ctx context.Context, zone *domain.Zone, now time.Time) error {
	if zone.CurrentState == domain.StateDeleted {
		return nil
	}

	if err := r.client.DeleteZone(ctx, zone.ZoneName); err != nil {
		r.logger.Warn("expired zone remote delete failed, will retry",
			logger.String("zone", zone.ZoneName),
			logger.Error(err))
		if console.IsTransport(err) {
			return err
		}
		return fmt.Errorf("delete expired zone %s: %w", zone.ZoneName, err)
	}
	if err := r.store.DeleteZone(ctx, r.serverID, zone.ZoneName); err != nil {
		return err
	}

	r.appendEvent(ctx, zone, domain.EventDeleted, map[string]any{
		"reason":          "expired",
		"offline_seconds": int(domain.OfflineElapsed(zone, now).Seconds()),
	})
	r.logger.Info("expired zone deleted",
		logger.String("zone", zone.ZoneName),
		logger.String("owner", zone.Owner),
		logger.String("server_id", r.serverID))
	return nil
}

// applyEnforcement issues the corrective command sequence in fixed
// order, permissions before color, so a partially applied sequence
// never leaves a zone visually healthy while functionally wrong. The
// health record's actual-state cache is updated per attribute as
// commands land.
func (r *Reconciler) applyEnforcement(ctx context.Context, zone *domain.Zone, desired domain.Enforcement, rec *domain.HealthRecord) error {
	perms := console.Permissions{
		AllowBuildingDamage: desired.AllowBuildingDamage,
		AllowPVPDamage:      desired.AllowPVPDamage,
	}
	if err := r.client.ApplyPermissions(ctx, zone.ZoneName, perms); err != nil {
		rec.ActualKnown = false
		rec.ActualState = ""
		return fmt.Errorf("apply permissions: %w", err)
	}
	rec.ActualKnown = true
	rec.Actual.AllowBuildingDamage = desired.AllowBuildingDamage
	rec.Actual.AllowPVPDamage = desired.AllowPVPDamage

	if err := r.client.ApplyColor(ctx, zone.ZoneName, desired.Color); err != nil {
		return fmt.Errorf("apply color: %w", err)
	}
	rec.Actual.Color = desired.Color
	return nil
}

func (r *Reconciler) loadHealth(ctx context.Context, zone *domain.Zone) *domain.HealthRecord {
	rec, err := r.store.GetHealth(ctx, r.serverID, zone.ZoneName)
	if err != nil {
		return &domain.HealthRecord{
			ZoneName: zone.ZoneName,
			ServerID: r.serverID,
		}
	}
	return rec
}

// repairAllowed checks the cool-down and the consecutive-failure cap.
// A change in expected state resets the failure count: the old repair
// target no longer applies.
func (r *Reconciler) repairAllowed(zoneName string, expected domain.State, now time.Time, rec *domain.HealthRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastAttempt[zoneName] != expected {
		r.failures[zoneName] = 0
		r.lastAttempt[zoneName] = expected
	}

	if until, ok := r.cooldowns[zoneName]; ok && now.Sub(until) < r.cfg.RepairCooldown {
		return false
	}
	if r.failures[zoneName] >= r.cfg.MaxRepairFailures {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("repair suspended after %d consecutive failures, operator attention required", r.failures[zoneName]))
		return false
	}
	return true
}

func (r *Reconciler) stampCooldown(zoneName string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldowns[zoneName] = now
}

func (r *Reconciler) resetFailures(zoneName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[zoneName] = 0
}

func (r *Reconciler) countFailure(zoneName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[zoneName]++
}

func (r *Reconciler) appendEvent(ctx context.Context, zone *domain.Zone, eventType string, details map[string]any) {
	ev := &domain.Event{
		ZoneName:  zone.ZoneName,
		EventType: eventType,
		ServerID:  r.serverID,
		Details:   details,
		Timestamp: r.now(),
	}
	if err := r.store.AppendEvent(ctx, ev); err != nil {
		r.logger.Warn("failed to append event",
			logger.String("zone", zone.ZoneName),
			logger.Error(err))
	}
}
