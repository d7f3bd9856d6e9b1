package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/logger"
)

// TriggerSweep kicks a discovery sweep for one server without waiting
// for the next tick.
func TriggerSweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")

		trigger, ok := d.SweepTriggers[serverID]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown server")
			return
		}

		select {
		case trigger <- struct{}{}:
			d.Logger.Info("manual sweep triggered via endpoint",
				logger.String("server", serverID),
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
		default:
			d.Logger.Warn("sweep already in progress",
				logger.String("server", serverID),
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "sweep already pending")
		}
	}
}
