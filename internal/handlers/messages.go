package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sahilmundada/rathialmuninetwork/internal/api/middleware"
	"github.com/sahilmundada/rathialmuninetwork/internal/chat"
	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	ReceiverID  string   `json:"receiverId"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

// MarkReadResponse reports how many messages a bulk mark-read touched.
type MarkReadResponse struct {
	Count int64 `json:"count"`
}

// SendMessage handles the synchronous send for clients without a live
// connection. The message is still routed to the receiver's connection if
// they are online.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.GetUserFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid receiver ID format")
		return
	}

	msg, err := h.hub.Send(r.Context(), senderID, receiverID, req.Content, req.Attachments)
	if err != nil {
		h.chatError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// GetConversation returns the message history with another user and marks
// their messages to the caller as read — the REST equivalent of the live
// loadHistory operation.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())

	counterpartID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	messages, err := h.hub.History(r.Context(), userID, counterpartID)
	if err != nil {
		h.chatError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, messages)
}

// GetRecentConversations returns, per counterpart, the latest message and
// the caller's unread count.
func (h *Handler) GetRecentConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserFromContext(r.Context())

	summaries, err := h.hub.Recent(r.Context(), userID)
	if err != nil {
		h.chatError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	h.JSON(w, http.StatusOK, summaries)
}

// MarkMessagesRead bulk-marks all unread messages from the given sender to
// the caller. The sender receives a read receipt if online.
func (h *Handler) MarkMessagesRead(w http.ResponseWriter, r *http.Request) {
	readerID := middleware.GetUserFromContext(r.Context())

	senderID, err := uuid.Parse(chi.URLParam(r, "senderID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid sender ID format")
		return
	}

	count, err := h.hub.MarkRead(r.Context(), readerID, senderID)
	if err != nil {
		h.chatError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MarkReadResponse{Count: count})
}

// DeleteMessage removes a message. Only the sender may delete their own
// message; anyone else gets an authorization error and no state changes.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.GetUserFromContext(r.Context())
	messageID := chi.URLParam(r, "messageID")

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if msg == nil {
		h.Error(w, http.StatusNotFound, "message not found")
		return
	}
	if msg.SenderID != callerID {
		h.Error(w, http.StatusForbidden, "not authorized to delete this message")
		return
	}

	if err := h.store.DeleteMessage(r.Context(), messageID); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "message deleted"})
}

// chatError maps the messaging error taxonomy to HTTP statuses.
func (h *Handler) chatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		h.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, chat.ErrUnauthorized):
		h.Error(w, http.StatusForbidden, "not authorized")
	default:
		h.log.Error().Err(err).Msg("message operation failed")
		h.Error(w, http.StatusInternalServerError, "server error")
	}
}
