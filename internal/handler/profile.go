package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mwalsh/linkhub/internal/auth"
	"github.com/mwalsh/linkhub/internal/model"
	"github.com/mwalsh/linkhub/internal/store"
	"github.com/mwalsh/linkhub/internal/upload"
	"github.com/mwalsh/linkhub/internal/websocket"
)

const maxBioLength = 500

// multipartFormLimit bounds a PATCH /api/profile body: the 1 MiB image
// plus headroom for the text fields and multipart framing.
const multipartFormLimit = upload.MaxImageSize + 64*1024

type ProfileHandler struct {
	userStore *store.UserStore
	linkStore *store.LinkStore
	uploads   *upload.Store
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewProfileHandler(us *store.UserStore, ls *store.LinkStore, up *upload.Store, hub *websocket.Hub, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		userStore: us,
		linkStore: ls,
		uploads:   up,
		hub:       hub,
		logger:    logger,
	}
}

func (h *ProfileHandler) notify(userID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Notify(userID, msg)
	}
}

func (h *ProfileHandler) profileResponse(user *model.User) (*model.Profile, error) {
	links, err := h.linkStore.ListByUserID(user.ID)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []model.Link{}
	}
	return &model.Profile{PublicUser: user.Public(), Links: links}, nil
}

// Me returns the authenticated user's profile with all links, active or not.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		if err != nil {
			h.logger.Error("get user", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	profile, err := h.profileResponse(user)
	if err != nil {
		h.logger.Error("list profile links", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error fetching profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Public returns any user's profile by username. The caller filters
// inactive links before rendering.
func (h *ProfileHandler) Public(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	user, err := h.userStore.GetByUsername(username)
	if err != nil {
		h.logger.Error("get user by username", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error fetching profile"})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}

	profile, err := h.profileResponse(user)
	if err != nil {
		h.logger.Error("list profile links", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error fetching profile"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update applies a multipart patch: displayName, username, bio, and an
// optional profileImage file. All validation happens before any write.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	// Oversized uploads die here, before any store write.
	r.Body = http.MaxBytesReader(w, r.Body, multipartFormLimit)
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form or file too large"})
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		if err != nil {
			h.logger.Error("get user", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	patch := store.ProfilePatch{}
	if vals, ok := r.MultipartForm.Value["displayName"]; ok && len(vals) > 0 {
		v := strings.TrimSpace(vals[0])
		patch.DisplayName = &v
	}
	if vals, ok := r.MultipartForm.Value["bio"]; ok && len(vals) > 0 {
		v := vals[0]
		if len(v) > maxBioLength {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bio must be 500 characters or fewer"})
			return
		}
		patch.Bio = &v
	}
	if vals, ok := r.MultipartForm.Value["username"]; ok && len(vals) > 0 {
		v := strings.TrimSpace(vals[0])
		if len(v) < 3 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username must be at least 3 characters"})
			return
		}
		if v != user.Username {
			taken, err := h.userStore.UsernameExists(v, user.ID)
			if err != nil {
				h.logger.Error("check username", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error updating profile"})
				return
			}
			if taken {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username already exists"})
				return
			}
		}
		patch.Username = &v
	}

	oldPicture := user.ProfilePicture
	file, header, err := r.FormFile("profileImage")
	switch {
	case err == nil:
		defer file.Close()
		urlPath, err := h.uploads.SaveImage(file, header)
		if err != nil {
			if errors.Is(err, upload.ErrNotImage) || errors.Is(err, upload.ErrTooLarge) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			h.logger.Error("save profile image", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error updating profile"})
			return
		}
		patch.Picture = &urlPath
		patch.SetPicture = true
	case errors.Is(err, http.ErrMissingFile):
		// No new image; leave the current one alone.
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profileImage field"})
		return
	}

	updated, err := h.userStore.UpdateProfile(user.ID, patch)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error updating profile"})
		return
	}

	// The old image is orphaned once the row points elsewhere.
	if patch.SetPicture && oldPicture != nil {
		if err := h.uploads.Remove(*oldPicture); err != nil {
			h.logger.Warn("remove old profile image", "error", err)
		}
	}

	h.notify(user.ID, websocket.NewMessage("profile", "updated", user.ID))

	writeJSON(w, http.StatusOK, updated.Public())
}

// DeleteImage clears the profile picture. Deleting when none is set is a
// 404, distinct from clearing an existing one.
func (h *ProfileHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		if err != nil {
			h.logger.Error("get user", "error", err)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	if user.ProfilePicture == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no profile image found"})
		return
	}

	if err := h.uploads.Remove(*user.ProfilePicture); err != nil {
		h.logger.Warn("remove profile image", "error", err)
	}

	updated, err := h.userStore.UpdateProfile(user.ID, store.ProfilePatch{SetPicture: true})
	if err != nil {
		h.logger.Error("clear profile image", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "error deleting profile image"})
		return
	}

	h.notify(user.ID, websocket.NewMessage("profile", "updated", user.ID))

	writeJSON(w, http.StatusOK, updated.Public())
}
