package api

import (
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/navis-app/navis-api/internal/geo"
	"github.com/navis-app/navis-api/internal/overlay"
	"github.com/navis-app/navis-api/internal/route"
)

func (h *Handler) handleListZones(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"zones": h.svc.Catalog.Zones()})
}

func (h *Handler) handleClassify(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	p := geo.Coordinate{Lat: lat, Lng: lng}
	if latErr != nil || lngErr != nil || !p.Valid() {
		h.fail(w, r, eris.Wrap(route.ErrInvalidInput, "api: classify coordinates"))
		return
	}
	res := h.svc.Routes.Classifier().Classify(p)
	h.svc.Metrics.ObserveClassification(res.Level.String())
	h.writeJSON(w, http.StatusOK, res)
}

type computeRouteRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

func (h *Handler) handleComputeRoute(w http.ResponseWriter, r *http.Request) {
	var req computeRouteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	origin, err := route.ParseEndpoint(req.Origin)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dest, err := route.ParseEndpoint(req.Destination)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user := userFrom(r.Context())
	res, err := h.svc.Routes.ComputeRoute(r.Context(), user.ID, origin, dest)
	if err != nil {
		h.svc.Metrics.ObserveRoute(routeOutcome(err))
		h.fail(w, r, err)
		return
	}
	h.svc.Metrics.ObserveRoute("ok")
	for _, p := range res.Points {
		h.svc.Metrics.ObserveClassification(p.Level.String())
	}
	if err := h.svc.Dashboard.RecordComputed(r.Context(), user.ID); err != nil {
		zap.L().Warn("api: record computed route", zap.String("user_id", user.ID), zap.Error(err))
	}
	h.writeJSON(w, http.StatusOK, res)
}

func routeOutcome(err error) string {
	switch {
	case eris.Is(err, route.ErrSuperseded):
		return "superseded"
	case eris.Is(err, route.ErrMapUnavailable):
		return "map_unavailable"
	case eris.Is(err, route.ErrNotFound):
		return "not_found"
	case eris.Is(err, route.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func (h *Handler) handleAttachMap(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := h.svc.Routes.AttachMap(r.Context(), user.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.svc.Metrics.SetActiveSurfaces(h.svc.Board.Len())
	h.writeJSON(w, http.StatusOK, map[string]bool{
		"attached":       true,
		"overlayEnabled": h.svc.Routes.OverlayEnabled(user.ID),
	})
}

func (h *Handler) handleDetachMap(w http.ResponseWriter, r *http.Request) {
	h.svc.Routes.DetachMap(userFrom(r.Context()).ID)
	h.svc.Metrics.SetActiveSurfaces(h.svc.Board.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetOverlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user := userFrom(r.Context())
	// The toggle sticks even without a surface; zones are drawn on attach.
	drawn := true
	if err := h.svc.Routes.SetOverlay(r.Context(), user.ID, req.Enabled); err != nil {
		if !eris.Is(err, route.ErrMapUnavailable) {
			h.fail(w, r, err)
			return
		}
		drawn = false
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled, "drawn": drawn && req.Enabled})
}

func (h *Handler) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Routes.Layers(userFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := overlay.MarshalGeoJSON(groups)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
