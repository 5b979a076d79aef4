package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/navis-app/navis-api/internal/dashboard"
	"github.com/navis-app/navis-api/internal/model"
)

type saveRouteRequest struct {
	Name        string `json:"name"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

func (h *Handler) handleListSavedRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.svc.Dashboard.ListRoutes(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

func (h *Handler) handleSaveRoute(w http.ResponseWriter, r *http.Request) {
	var req saveRouteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.svc.Dashboard.SaveRoute(r.Context(), userFrom(r.Context()), req.Name, req.Origin, req.Destination)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rt)
}

func (h *Handler) handleRenameRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.svc.Dashboard.RenameRoute(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Dashboard.DeleteRoute(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := h.svc.Dashboard.SelectRoute(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Dashboard.Stats(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req model.Preferences
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	prefs, err := h.svc.Dashboard.UpdatePreferences(r.Context(), userFrom(r.Context()).ID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"plans": dashboard.Plans()})
}

func (h *Handler) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan model.PlanID `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.svc.Dashboard.ChangePlan(r.Context(), userFrom(r.Context()), req.Plan)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u)
}
