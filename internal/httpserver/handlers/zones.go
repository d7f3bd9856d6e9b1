package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustport/zorp/internal/console"
	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/httpserver/deps"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/zones"
)

type zoneResponse struct {
	*domain.Zone
	OfflineRemainingSeconds *float64 `json:"offline_remaining_seconds,omitempty"`
}

func toZoneResponse(z *domain.Zone, now time.Time) zoneResponse {
	resp := zoneResponse{Zone: z}
	if z.LastOfflineAt != nil {
		secs := domain.OfflineRemaining(z, now).Seconds()
		resp.OfflineRemainingSeconds = &secs
	}
	return resp
}

func timeNow(d deps.Deps) time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}

// CreateZone handles zone creation requests from the operator front-end.
func CreateZone(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req zones.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		// Per-server default colors apply before the global fallbacks.
		if srv, ok := d.Servers[req.ServerID]; ok {
			if req.ColorOnline == "" {
				req.ColorOnline = srv.ColorOnline
			}
			if req.ColorOffline == "" {
				req.ColorOffline = srv.ColorOffline
			}
		}

		zone, err := d.Zones.CreateZone(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, zones.ErrUnknownServer):
				writeError(w, http.StatusNotFound, err.Error())
			case console.IsTransport(err):
				writeError(w, http.StatusBadGateway, "game server console unreachable")
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}

		d.Logger.Info("zone created via api",
			logger.String("zone", zone.ZoneName),
			logger.String("server", zone.ServerID))
		writeJSON(w, http.StatusCreated, toZoneResponse(zone, timeNow(d)))
	}
}

// DeleteZone handles explicit zone removal.
func DeleteZone(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")
		zoneName := chi.URLParam(r, "zoneName")
		actor := r.URL.Query().Get("actor")
		if actor == "" {
			actor = "operator"
		}

		err := d.Zones.RemoveZone(r.Context(), serverID, zoneName, actor, "operator_request")
		if err != nil {
			switch {
			case errors.Is(err, zones.ErrUnknownServer):
				writeError(w, http.StatusNotFound, err.Error())
			case console.IsTransport(err):
				writeError(w, http.StatusBadGateway, "game server console unreachable")
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// TeamLeave removes the zone when its owner leaves the team.
func TeamLeave(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")
		zoneName := chi.URLParam(r, "zoneName")

		owner, ok := domain.OwnerFromZoneName(zoneName)
		if !ok {
			writeError(w, http.StatusBadRequest, "not a managed zone name")
			return
		}

		if err := d.Zones.HandleTeamLeave(r.Context(), serverID, owner); err != nil {
			if console.IsTransport(err) {
				writeError(w, http.StatusBadGateway, "game server console unreachable")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListZones returns every tracked zone on a server.
func ListZones(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")

		list, err := d.Store.ListZonesByServer(r.Context(), serverID)
		if err != nil {
			d.Logger.Error("failed to list zones", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list zones")
			return
		}

		now := timeNow(d)
		out := make([]zoneResponse, 0, len(list))
		for _, z := range list {
			out = append(out, toZoneResponse(z, now))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ZoneHealth returns the latest reconciliation verdict for a zone.
func ZoneHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")
		zoneName := chi.URLParam(r, "zoneName")

		rec, err := d.Store.GetHealth(r.Context(), serverID, zoneName)
		if err != nil {
			if errors.Is(err, zones.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no health record for zone")
				return
			}
			d.Logger.Error("failed to fetch health record", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch health record")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// ZoneEvents returns the audit trail for a zone, newest last.
func ZoneEvents(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverID := chi.URLParam(r, "serverID")
		zoneName := chi.URLParam(r, "zoneName")

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		events, err := d.Store.ListEvents(r.Context(), serverID, zoneName, limit)
		if err != nil {
			d.Logger.Error("failed to list events", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list events")
			return
		}
		if events == nil {
			events = []*domain.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
