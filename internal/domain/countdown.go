package domain

import "time"

// Offline-countdown math. The countdown is active iff the owner is
// currently offline; an owner coming back online clears LastOfflineAt
// entirely, so the next disconnect restarts the countdown from the
// beginning rather than resuming where it left off.

// OfflineElapsed returns how long the owner has been continuously
// offline, or zero when the countdown is not running.
func OfflineElapsed(z *Zone, now time.Time) time.Duration {
	if z.LastOfflineAt == nil {
		return 0
	}
	elapsed := now.Sub(*z.LastOfflineAt)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// OfflineRemaining returns the time left before the zone expires,
// floored at zero. A zone whose countdown is not running reports the
// full expiry budget.
func OfflineRemaining(z *Zone, now time.Time) time.Duration {
	expire := time.Duration(z.ExpireSeconds) * time.Second
	remaining := expire - OfflineElapsed(z, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpiryDue reports whether the zone has exhausted its continuous
// offline budget. A zone that has never gone offline is never eligible
// for expiry-based deletion.
func ExpiryDue(z *Zone, now time.Time) bool {
	if z.LastOfflineAt == nil {
		return false
	}
	return OfflineElapsed(z, now) >= time.Duration(z.ExpireSeconds)*time.Second
}
