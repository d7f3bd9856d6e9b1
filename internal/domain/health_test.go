package domain

import (
	"strings"
	"testing"
)

func TestScoreHealthConsistent(t *testing.T) {
	e := Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: "255,0,0"}

	score, issues := ScoreHealth(e, e, true)
	if score != HealthMax {
		t.Errorf("score = %d, want %d", score, HealthMax)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v, want none", issues)
	}
}

func TestScoreHealthColorOnlyMismatch(t *testing.T) {
	// Permission commands succeeded, color command failed: the score is
	// degraded but not zero, and the issue names the color attribute.
	expected := Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: "255,0,0"}
	actual := Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: "0,255,0"}

	score, issues := ScoreHealth(expected, actual, true)
	if score >= HealthMax || score <= 0 {
		t.Errorf("score = %d, want partial (0 < score < 100)", score)
	}
	if len(issues) != 1 || !strings.Contains(issues[0], "color") {
		t.Errorf("issues = %v, want a single color issue", issues)
	}
}

func TestScoreHealthFullMismatch(t *testing.T) {
	expected := Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: "255,0,0"}
	actual := Enforcement{AllowBuildingDamage: false, AllowPVPDamage: false, Color: "0,255,0"}

	score, issues := ScoreHealth(expected, actual, true)
	if score != 0 {
		t.Errorf("score = %d, want 0", score)
	}
	if len(issues) != 3 {
		t.Errorf("issues = %v, want 3 symptom tags", issues)
	}
}

func TestScoreHealthUnknownActual(t *testing.T) {
	expected := Enforcement{AllowBuildingDamage: false, AllowPVPDamage: true, Color: "0,255,0"}

	score, issues := ScoreHealth(expected, Enforcement{}, false)
	if score != 0 {
		t.Errorf("score = %d, want 0 for unknown actual state", score)
	}
	if len(issues) == 0 {
		t.Error("unknown actual state must surface as an issue")
	}
}
