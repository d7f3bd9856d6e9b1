package domain

import (
	"testing"
	"time"
)

func testZone(createdAt time.Time) *Zone {
	return &Zone{
		ZoneName:      "ZORP_Alice",
		Owner:         "Alice",
		ServerID:      "main",
		Size:          50,
		ColorOnline:   "0,255,0",
		ColorOffline:  "255,0,0",
		DelaySeconds:  300,
		ExpireSeconds: 126000,
		CreatedAt:     createdAt,
		CurrentState:  StatePending,
	}
}

func TestExpectedStateCreationDelay(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	window := 30 * time.Second

	// At t=100s the creation delay has not elapsed.
	if got := ExpectedState(z, true, created.Add(100*time.Second), window); got != StatePending {
		t.Errorf("at t=100s expected pending, got %s", got)
	}

	// At t=301s with the owner online the zone is protected.
	if got := ExpectedState(z, true, created.Add(301*time.Second), window); got != StateProtected {
		t.Errorf("at t=301s expected protected, got %s", got)
	}
}

func TestExpectedStateOfflineTransition(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	z.DelaySeconds = 0
	window := 30 * time.Second

	offlineAt := created.Add(time.Hour)
	z.LastOfflineAt = &offlineAt

	// 10s after going offline the zone is still in the grace window.
	if got := ExpectedState(z, false, offlineAt.Add(10*time.Second), window); got != StateTransitional {
		t.Errorf("at +10s expected transitional, got %s", got)
	}

	// 40s after going offline the lockdown has taken effect.
	if got := ExpectedState(z, false, offlineAt.Add(40*time.Second), window); got != StateLocked {
		t.Errorf("at +40s expected locked, got %s", got)
	}
}

func TestExpectedStateExpiry(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	z.DelaySeconds = 0

	offlineAt := created.Add(time.Hour)
	z.LastOfflineAt = &offlineAt
	window := 30 * time.Second

	// One second before the 35h budget runs out the zone is still locked.
	if got := ExpectedState(z, false, offlineAt.Add(125999*time.Second), window); got != StateLocked {
		t.Errorf("at 125999s expected locked, got %s", got)
	}

	// At and past the budget the zone is deleted.
	if got := ExpectedState(z, false, offlineAt.Add(126000*time.Second), window); got != StateDeleted {
		t.Errorf("at 126000s expected deleted, got %s", got)
	}
	if got := ExpectedState(z, false, offlineAt.Add(126001*time.Second), window); got != StateDeleted {
		t.Errorf("at 126001s expected deleted, got %s", got)
	}
}

func TestExpectedStateIsPure(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	now := created.Add(500 * time.Second)
	window := 30 * time.Second

	first := ExpectedState(z, true, now, window)
	for i := 0; i < 10; i++ {
		if got := ExpectedState(z, true, now, window); got != first {
			t.Fatalf("same inputs yielded %s then %s", first, got)
		}
	}
}

func TestExpectedStateNeverOfflineNeverExpires(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	z.DelaySeconds = 0
	window := 30 * time.Second

	// Owner offline but no countdown recorded: the zone sits in the
	// grace window and is never expiry-deleted.
	years := created.Add(2 * 365 * 24 * time.Hour)
	if got := ExpectedState(z, false, years, window); got == StateDeleted {
		t.Error("zone with no offline timestamp must not be expiry-deleted")
	}
}

func TestEnforcementFor(t *testing.T) {
	z := testZone(time.Now())

	tests := []struct {
		state State
		want  Enforcement
	}{
		{StateProtected, Enforcement{AllowBuildingDamage: false, AllowPVPDamage: true, Color: "0,255,0"}},
		{StateTransitional, Enforcement{AllowBuildingDamage: false, AllowPVPDamage: true, Color: "255,255,0"}},
		{StateLocked, Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: "255,0,0"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got := EnforcementFor(z, tt.state, "255,255,0")
			if got != tt.want {
				t.Errorf("EnforcementFor(%s) = %+v, want %+v", tt.state, got, tt.want)
			}
		})
	}
}

func TestStateEnforced(t *testing.T) {
	if StatePending.Enforced() {
		t.Error("pending must not carry enforcement")
	}
	if StateDeleted.Enforced() {
		t.Error("deleted must not carry enforcement")
	}
	for _, s := range []State{StateProtected, StateTransitional, StateLocked} {
		if !s.Enforced() {
			t.Errorf("%s must carry enforcement", s)
		}
	}
}
