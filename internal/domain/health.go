package domain

import (
	"fmt"
	"time"
)

const (
	// HealthMax is the score of a fully consistent zone.
	HealthMax = 100

	// Per-attribute penalties. Permission drift is worse than a wrong
	// color: a visually stale zone is cosmetic, an unprotected base is
	// not.
	PenaltyBuildingDamage = 40
	PenaltyPVPDamage      = 40
	PenaltyColor          = 20
)

// HealthRecord is the latest reconciliation verdict for one zone.
// Owned by the reconciler; read-mostly by operators for diagnostics.
type HealthRecord struct {
	ZoneName      string    `json:"zone_name"`
	ServerID      string    `json:"server_id"`
	ExpectedState State     `json:"expected_state"`
	ActualState   State     `json:"actual_state"`
	HealthScore   int       `json:"health_score"`
	Issues        []string  `json:"issues,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at"`

	// Actual is the last enforcement this service observed or applied
	// on the game server. ActualKnown is false until a first successful
	// command sequence (or after one fails mid-flight).
	Actual      Enforcement `json:"actual"`
	ActualKnown bool        `json:"actual_known"`
}

// ScoreHealth compares the expected enforcement against the last known
// actual enforcement and returns the health score with symptom tags.
func ScoreHealth(expected, actual Enforcement, actualKnown bool) (int, []string) {
	if !actualKnown {
		return 0, []string{"actual state unknown"}
	}

	score := HealthMax
	var issues []string

	if expected.AllowBuildingDamage != actual.AllowBuildingDamage {
		score -= PenaltyBuildingDamage
		issues = append(issues, fmt.Sprintf("building damage: expected=%v actual=%v",
			expected.AllowBuildingDamage, actual.AllowBuildingDamage))
	}
	if expected.AllowPVPDamage != actual.AllowPVPDamage {
		score -= PenaltyPVPDamage
		issues = append(issues, fmt.Sprintf("pvp damage: expected=%v actual=%v",
			expected.AllowPVPDamage, actual.AllowPVPDamage))
	}
	if expected.Color != actual.Color {
		score -= PenaltyColor
		issues = append(issues, fmt.Sprintf("color: expected=%s actual=%s",
			expected.Color, actual.Color))
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}
