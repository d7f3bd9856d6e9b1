package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/httpserver/handlers"
	"github.com/rustport/zorp/internal/httpserver/mw"
)

func init() { Register(registerZones) }

func registerZones(r chi.Router, d deps.Deps) {
	guarded := r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	)

	guarded.Get("/zones/{serverID}", handlers.ListZones(d))
	guarded.Get("/zones/{serverID}/{zoneName}/health", handlers.ZoneHealth(d))
	guarded.Get("/zones/{serverID}/{zoneName}/events", handlers.ZoneEvents(d))

	// Mutations additionally go through the per-IP rate limiter.
	mutating := guarded.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             20,
		RefillPerIPPerMin: 60,
		MaxEntries:        10000,
		SweepInterval:     time.Minute,
		IdleTTL:           15 * time.Minute,
		TrustProxy:        d.TrustProxy,
	}))

	mutating.Post("/zones", handlers.CreateZone(d))
	mutating.Delete("/zones/{serverID}/{zoneName}", handlers.DeleteZone(d))
	mutating.Post("/zones/{serverID}/{zoneName}/team-leave", handlers.TeamLeave(d))
}
