package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mwalsh/linkhub/internal/auth"
	"github.com/mwalsh/linkhub/internal/model"
	"github.com/mwalsh/linkhub/internal/platform"
	"github.com/mwalsh/linkhub/internal/store"
	"github.com/mwalsh/linkhub/internal/websocket"
)

type LinkHandler struct {
	linkStore *store.LinkStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewLinkHandler(ls *store.LinkStore, hub *websocket.Hub, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{linkStore: ls, hub: hub, logger: logger}
}

func (h *LinkHandler) notify(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Notify(userID, msg)
	}
}

type createLinkRequest struct {
	Platform string  `json:"platform"`
	URL      string  `json:"url"`
	Title    *string `json:"title"`
	Active   *bool   `json:"active"`
}

// validLinkURL requires an absolute http(s) URL. Bare domains are the
// client's job to normalize; they are rejected here, not auto-corrected.
func validLinkURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Platform == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "platform is required"})
		return
	}
	if !platform.Valid(req.Platform) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown platform"})
		return
	}
	if !validLinkURL(req.URL) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url must be absolute with http or https scheme"})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	link, err := h.linkStore.Create(userID, req.Platform, req.URL, req.Title, active)
	if err != nil {
		h.logger.Error("create link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error creating link"})
		return
	}

	h.notify(userID, websocket.NewMessage("link", "created", link.ID))

	writeJSON(w, http.StatusCreated, link)
}

func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid link id"})
		return
	}

	existing, err := h.linkStore.GetByID(id)
	if err != nil {
		h.logger.Error("get link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error updating link"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "link not found"})
		return
	}
	if existing.UserID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your link"})
		return
	}

	var patch model.LinkPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if patch.URL != nil && !validLinkURL(*patch.URL) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url must be absolute with http or https scheme"})
		return
	}

	link, err := h.linkStore.Update(id, patch)
	if err != nil {
		h.logger.Error("update link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error updating link"})
		return
	}

	h.notify(userID, websocket.NewMessage("link", "updated", id))

	writeJSON(w, http.StatusOK, link)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid link id"})
		return
	}

	existing, err := h.linkStore.GetByID(id)
	if err != nil {
		h.logger.Error("get link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error deleting link"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "link not found"})
		return
	}
	if existing.UserID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your link"})
		return
	}

	if err := h.linkStore.Delete(id); err != nil {
		h.logger.Error("delete link", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error deleting link"})
		return
	}

	h.notify(userID, websocket.NewMessage("link", "deleted", id))

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

// Reorder renumbers the caller's links to match the submitted id sequence.
func (h *LinkHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids is required"})
		return
	}

	if err := h.linkStore.Reorder(userID, req.IDs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid link ids"})
		return
	}

	links, err := h.linkStore.ListByUserID(userID)
	if err != nil {
		h.logger.Error("list links", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error listing links"})
		return
	}

	h.notify(userID, websocket.NewMessage("link", "reordered", 0))

	writeJSON(w, http.StatusOK, links)
}

// Platforms serves the static platform catalog.
func (h *LinkHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platform.All())
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
