package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/navis-app/navis-api/internal/feed"
)

func authorFrom(r *http.Request) feed.Author {
	u := userFrom(r.Context())
	return feed.Author{UserID: u.ID, Name: u.Name, Avatar: u.AvatarURL}
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Feed.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Feed.Publish(r.Context(), authorFrom(r), req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Feed.Delete(r.Context(), chi.URLParam(r, "id"), authorFrom(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Feed.ToggleLike(r.Context(), chi.URLParam(r, "id"), authorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handlePin(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Feed.TogglePin(r.Context(), chi.URLParam(r, "id"), authorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.Feed.Comment(r.Context(), chi.URLParam(r, "id"), authorFrom(r), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Feed.DeleteComment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "commentID"), authorFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
