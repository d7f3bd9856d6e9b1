package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ZoneNamePrefix is prepended to the owner name to form the in-game zone name.
const ZoneNamePrefix = "ZORP_"

// State is the lifecycle state of a zone.
type State string

const (
	StatePending      State = "pending"      // creation grace period, no enforcement yet
	StateProtected    State = "protected"    // owner online, building damage blocked
	StateTransitional State = "transitional" // owner just went offline, lockdown pending
	StateLocked       State = "locked"       // owner offline, raid protection lifted
	StateDeleted      State = "deleted"      // expired or removed
)

// Zone represents a player-owned protection zone on one game server.
type Zone struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ZoneName is the in-game zone name, unique per server.
	// Derived from Owner for zones created by this service; adopted
	// zones keep whatever name they carry in-game.
	ZoneName string `json:"zone_name"`

	// Owner is the player identifier the zone belongs to.
	Owner string `json:"owner"`

	// ServerID identifies the game server the zone lives on.
	ServerID string `json:"server_id"`

	// ─────────────────────────────
	// Geometry & configuration
	// ─────────────────────────────

	Size           float64  `json:"size"`
	Position       Position `json:"position"`
	RadiationLevel float64  `json:"radiation_level"`
	MinTeamSize    int      `json:"min_team_size"`
	MaxTeamSize    int      `json:"max_team_size"`

	// ColorOnline and ColorOffline are "r,g,b" strings as the game
	// console expects them.
	ColorOnline  string `json:"color_online"`
	ColorOffline string `json:"color_offline"`

	// DelaySeconds is the grace period after creation before any
	// enforcement begins.
	DelaySeconds int `json:"delay_seconds"`

	// ExpireSeconds is the maximum continuous-offline duration before
	// the zone is deleted.
	ExpireSeconds int `json:"expire_seconds"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	CreatedAt time.Time `json:"created_at"`

	// LastOfflineAt is set when the owner goes offline and cleared when
	// they return. Nil means the owner is online (or has never been seen
	// offline) and the expiry countdown is not running.
	LastOfflineAt *time.Time `json:"last_offline_at,omitempty"`

	// CurrentState is the last state this service applied or observed.
	// It may lag the derived expected state during a repair window.
	CurrentState State `json:"current_state"`
}

// Position is a point in world coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Position) String() string {
	return fmt.Sprintf("%.1f %.1f %.1f", p.X, p.Y, p.Z)
}

// ZoneNameFor derives the canonical zone name for an owner.
// Whitespace in owner names is flattened so the name survives quoting
// in console commands.
func ZoneNameFor(owner string) string {
	return ZoneNamePrefix + sanitizeOwner(owner)
}

// OwnerFromZoneName recovers the owner from an in-game zone name.
// Older deployments suffixed names with a creation unix timestamp
// ("ZORP_Alice_1700000000"); the suffix is stripped so adopted legacy
// zones group with their current counterpart.
func OwnerFromZoneName(zoneName string) (string, bool) {
	if !strings.HasPrefix(zoneName, ZoneNamePrefix) {
		return "", false
	}
	owner := strings.TrimPrefix(zoneName, ZoneNamePrefix)
	if owner == "" {
		return "", false
	}
	if idx := strings.LastIndex(owner, "_"); idx > 0 {
		suffix := owner[idx+1:]
		if len(suffix) >= 9 && isDigits(suffix) {
			owner = owner[:idx]
		}
	}
	return owner, true
}

func sanitizeOwner(owner string) string {
	var b strings.Builder
	b.Grow(len(owner))
	for _, r := range owner {
		if unicode.IsSpace(r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// ValidateConfig rejects malformed zone configuration at creation time
// so it never reaches the reconciliation loop.
func (z *Zone) ValidateConfig() error {
	switch {
	case z.Owner == "":
		return fmt.Errorf("zone config: owner is required")
	case z.ServerID == "":
		return fmt.Errorf("zone config: server id is required")
	case z.ExpireSeconds <= 0:
		return fmt.Errorf("zone config: expire_seconds must be > 0, got %d", z.ExpireSeconds)
	case z.DelaySeconds < 0:
		return fmt.Errorf("zone config: delay_seconds must be >= 0, got %d", z.DelaySeconds)
	case z.Size <= 0:
		return fmt.Errorf("zone config: size must be > 0, got %v", z.Size)
	case z.MinTeamSize < 0 || z.MaxTeamSize < 0:
		return fmt.Errorf("zone config: team sizes must be >= 0")
	case z.MaxTeamSize > 0 && z.MinTeamSize > z.MaxTeamSize:
		return fmt.Errorf("zone config: min_team_size %d exceeds max_team_size %d", z.MinTeamSize, z.MaxTeamSize)
	}
	if err := validateColor(z.ColorOnline); err != nil {
		return fmt.Errorf("zone config: color_online: %w", err)
	}
	if err := validateColor(z.ColorOffline); err != nil {
		return fmt.Errorf("zone config: color_offline: %w", err)
	}
	return nil
}

func validateColor(c string) error {
	parts := strings.Split(c, ",")
	if len(parts) != 3 {
		return fmt.Errorf("expected \"r,g,b\", got %q", c)
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !isDigits(p) {
			return fmt.Errorf("component %q is not a number", p)
		}
	}
	return nil
}
