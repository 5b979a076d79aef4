package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/navis-app/navis-api/internal/model"
	"github.com/navis-app/navis-api/internal/sos"
)

type triggerRequest struct {
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	HoldMs int64    `json:"holdMs"`
}

func callerFrom(r *http.Request) sos.Caller {
	u := userFrom(r.Context())
	return sos.Caller{ID: u.ID, Name: u.Name}
}

func (h *Handler) handleGetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.SOS.Contact(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleSetContact(w http.ResponseWriter, r *http.Request) {
	var req model.Contact
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.SOS.SetContact(r.Context(), userFrom(r.Context()).ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleTriggerSOS(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	caller := callerFrom(r)

	var lat, lng float64
	if req.Lat != nil && req.Lng != nil {
		lat, lng = *req.Lat, *req.Lng
	} else {
		loc, err := h.svc.Location.Current(r.Context(), caller.ID, clientIP(r))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		lat, lng = loc.Lat, loc.Lng
	}

	alert, err := h.svc.SOS.Trigger(r.Context(), caller, lat, lng, time.Duration(req.HoldMs)*time.Millisecond)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, alert)
}

func (h *Handler) handleCancelSOS(w http.ResponseWriter, r *http.Request) {
	alert, err := h.svc.SOS.Cancel(r.Context(), chi.URLParam(r, "id"), callerFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleSOSStatus(w http.ResponseWriter, r *http.Request) {
	alert, err := h.svc.SOS.Status(r.Context(), chi.URLParam(r, "id"), callerFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

// clientIP strips the port RemoteAddr carries when no proxy header was set.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
