package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserResponse represents the user profile response.
type UserResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Online         bool   `json:"online"`
	JoinedAt       string `json:"joined_at"`
}

// GetUser handles profile lookup with the user's current presence.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	// Validate UUID format
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	_, online := h.hub.Registry().Lookup(user.ID)

	h.JSON(w, http.StatusOK, UserResponse{
		ID:             user.ID.String(),
		Name:           user.Name,
		ProfilePicture: user.AvatarURL,
		Online:         online,
		JoinedAt:       user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// OnlineUsers returns the current online snapshot for non-connected clients.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	online := h.hub.Registry().Snapshot()
	users := make([]string, len(online))
	for i, id := range online {
		users[i] = id.String()
	}
	h.JSON(w, http.StatusOK, map[string][]string{"online": users})
}
