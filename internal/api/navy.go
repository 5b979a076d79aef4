package api

import (
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/navy"
)

func (h *Handler) handleNavy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := h.svc.Navy.Ask(r.Context(), req.Message)
	switch {
	case eris.Is(err, navy.ErrEmptyMessage):
		h.fail(w, r, err)
	case err != nil:
		writeText(w, http.StatusInternalServerError, navy.ConnectionErrorMessage)
	default:
		writeText(w, http.StatusOK, reply)
	}
}

func (h *Handler) handleHelpMenu(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"reply": navy.Menu()})
}

func (h *Handler) handleHelpChoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice string `json:"choice"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"reply": navy.Help(req.Choice)})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
