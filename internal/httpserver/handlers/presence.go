package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/logger"
)

type presenceRequest struct {
	ServerID string     `json:"server_id"`
	Player   string     `json:"player"`
	Online   bool       `json:"online"`
	At       *time.Time `json:"at,omitempty"`
}

// Presence ingests connect/disconnect notifications from the game
// server plugin. Duplicate notifications are harmless.
func Presence(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req presenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.ServerID == "" || req.Player == "" {
			writeError(w, http.StatusBadRequest, "server_id and player are required")
			return
		}

		at := timeNow(d)
		if req.At != nil {
			at = *req.At
		}

		if req.Online {
			d.Presence.HandleConnect(req.ServerID, req.Player, at)
		} else {
			d.Presence.HandleDisconnect(req.ServerID, req.Player, at)
		}

		d.Logger.Debug("presence update",
			logger.String("server", req.ServerID),
			logger.String("player", req.Player),
			logger.Bool("online", req.Online))
		w.WriteHeader(http.StatusAccepted)
	}
}
