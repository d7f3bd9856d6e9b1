package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/httpserver/handlers"
	"github.com/rustport/zorp/internal/httpserver/mw"
)

func init() { Register(registerPresence) }

func registerPresence(r chi.Router, d deps.Deps) {
	r.With(
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	).Post("/presence", handlers.Presence(d))
}
