package domain

import (
	"testing"
	"time"
)

func TestOfflineCountdownNotRunning(t *testing.T) {
	z := testZone(time.Now())
	now := time.Now()

	if got := OfflineElapsed(z, now); got != 0 {
		t.Errorf("OfflineElapsed with no countdown = %v, want 0", got)
	}
	if got := OfflineRemaining(z, now); got != 126000*time.Second {
		t.Errorf("OfflineRemaining with no countdown = %v, want full budget", got)
	}
	if ExpiryDue(z, now.Add(1000*time.Hour)) {
		t.Error("zone that never went offline must never be expiry-due")
	}
}

func TestOfflineCountdownRestartsFromZero(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)

	// First disconnect: countdown runs for 10h.
	first := created.Add(time.Hour)
	z.LastOfflineAt = &first
	mid := first.Add(10 * time.Hour)
	if got := OfflineElapsed(z, mid); got != 10*time.Hour {
		t.Fatalf("elapsed = %v, want 10h", got)
	}

	// Owner returns: countdown cleared, elapsed time discarded.
	z.LastOfflineAt = nil
	if got := OfflineElapsed(z, mid.Add(time.Minute)); got != 0 {
		t.Fatalf("elapsed after reconnect = %v, want 0", got)
	}

	// Second disconnect restarts from the beginning.
	second := mid.Add(time.Hour)
	z.LastOfflineAt = &second
	if got := OfflineElapsed(z, second.Add(time.Minute)); got != time.Minute {
		t.Errorf("elapsed after second disconnect = %v, want 1m", got)
	}
}

func TestExpiryBoundary(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	z := testZone(created)
	offlineAt := created.Add(time.Hour)
	z.LastOfflineAt = &offlineAt

	expire := time.Duration(z.ExpireSeconds) * time.Second

	if ExpiryDue(z, offlineAt.Add(expire-time.Second)) {
		t.Error("one second short of the budget must not be due")
	}
	if !ExpiryDue(z, offlineAt.Add(expire)) {
		t.Error("exactly at the budget must be due")
	}

	if got := OfflineRemaining(z, offlineAt.Add(expire+time.Hour)); got != 0 {
		t.Errorf("remaining past expiry = %v, want 0", got)
	}
}
