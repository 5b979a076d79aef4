package api

import (
	"net/http"

	"github.com/navis-app/navis-api/internal/profile"
)

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Profile.Get(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.Update
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Profile.Update(r.Context(), userFrom(r.Context()).ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"user": u, "message": "Perfil atualizado com sucesso!"})
}

type locationRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	loc, err := h.svc.Location.Update(r.Context(), userFrom(r.Context()).ID, req.Lat, req.Lng, req.Accuracy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) handleCurrentLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.Location.Current(r.Context(), userFrom(r.Context()).ID, clientIP(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loc)
}
