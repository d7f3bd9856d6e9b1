package domain

import "time"

// ExpectedState derives the state a zone should be in right now.
//
// It is a pure function of the zone's timestamps, the owner's presence
// and the clock; every code path that needs "what should this zone look
// like" goes through here so the state/time relationship is encoded in
// exactly one place.
//
// transitionWindow is the short grace period after the owner goes
// offline before the lockdown takes full effect, so brief disconnects
// and relogs are not punished.
func ExpectedState(z *Zone, ownerOnline bool, now time.Time, transitionWindow time.Duration) State {
	// Deletion wins from any state.
	if !ownerOnline && z.LastOfflineAt != nil {
		if now.Sub(*z.LastOfflineAt) >= time.Duration(z.ExpireSeconds)*time.Second {
			return StateDeleted
		}
	}

	if now.Sub(z.CreatedAt) < time.Duration(z.DelaySeconds)*time.Second {
		return StatePending
	}

	if ownerOnline {
		return StateProtected
	}

	if z.LastOfflineAt == nil || now.Sub(*z.LastOfflineAt) < transitionWindow {
		return StateTransitional
	}
	return StateLocked
}

// Enforcement is the set of attributes this service commands on the
// game server for a zone. Each field is independently checkable, so a
// partially applied command sequence degrades the health score per
// attribute instead of all-or-nothing.
type Enforcement struct {
	// AllowBuildingDamage true means raid protection is lifted.
	AllowBuildingDamage bool   `json:"allow_building_damage"`
	AllowPVPDamage      bool   `json:"allow_pvp_damage"`
	Color               string `json:"color"`
}

// EnforcementFor maps a state to the attributes the game server should
// enforce. transitionColor is the intermediate color used while the
// lockdown is pending; Pending zones carry no enforcement at all and
// must be skipped by the caller.
func EnforcementFor(z *Zone, state State, transitionColor string) Enforcement {
	switch state {
	case StateProtected:
		return Enforcement{AllowBuildingDamage: false, AllowPVPDamage: true, Color: z.ColorOnline}
	case StateTransitional:
		// Protection stays on during the grace window.
		return Enforcement{AllowBuildingDamage: false, AllowPVPDamage: true, Color: transitionColor}
	case StateLocked:
		return Enforcement{AllowBuildingDamage: true, AllowPVPDamage: true, Color: z.ColorOffline}
	}
	return Enforcement{}
}

// Enforced reports whether a state carries enforcement commands at all.
func (s State) Enforced() bool {
	switch s {
	case StateProtected, StateTransitional, StateLocked:
		return true
	}
	return false
}
