// Package chat implements the real-time messaging core: routing persisted
// messages to live connections, relaying ephemeral signals, and managing the
// lifecycle of each connection's presence binding.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sahilmundada/rathialmuninetwork/internal/metrics"
	"github.com/sahilmundada/rathialmuninetwork/internal/models"
	"github.com/sahilmundada/rathialmuninetwork/internal/presence"
	"github.com/sahilmundada/rathialmuninetwork/internal/store"
)

// Session is the outbound side of one live connection. Deliver must not
// block; it reports false when the event could not be queued.
type Session interface {
	ID() string
	Deliver(ev Event) bool
}

// Hub coordinates the shared messaging state: the presence registry, the
// durable message log, and the table of live sessions. All methods are safe
// for concurrent use from independent connection handlers.
type Hub struct {
	store    store.DataStore
	registry *presence.Registry
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewHub creates a hub over the given store and registry.
func NewHub(st store.DataStore, registry *presence.Registry, logger zerolog.Logger) *Hub {
	return &Hub{
		store:    st,
		registry: registry,
		log:      logger.With().Str("component", "hub").Logger(),
		sessions: make(map[string]Session),
	}
}

// Registry exposes the presence registry for read-side callers.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Run consumes presence-change notifications and broadcasts the online
// snapshot to every session. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.registry.Notify():
			h.broadcastOnline()
		}
	}
}

// Register admits a new, not-yet-identified session.
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	h.sessions[s.ID()] = s
	h.mu.Unlock()

	metrics.WSConnections.Inc()
}

// Identify binds a session to a user after a valid identity announcement.
// An unknown user id is rejected; the caller ignores the announcement and
// the connection stays unidentified.
func (h *Hub) Identify(ctx context.Context, connID string, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrValidation
	}
	user, err := h.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return ErrNotFound
	}

	h.registry.Bind(userID, connID)
	h.log.Info().
		Str("conn_id", connID).
		Str("user_id", userID.String()).
		Msg("user identified")
	return nil
}

// Disconnect tears down a session. If the session held the current presence
// binding for its user, the departure is announced; a stale connection (one
// already superseded by a newer identify) produces no presence side effects.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	_, known := h.sessions[connID]
	delete(h.sessions, connID)
	h.mu.Unlock()

	if !known {
		return
	}
	metrics.WSConnections.Dec()

	userID, wasBound := h.registry.Unbind(connID)
	if !wasBound {
		return
	}

	h.broadcast(Event{Type: EventOffline, UserID: userID.String()})
	h.log.Info().
		Str("conn_id", connID).
		Str("user_id", userID.String()).
		Msg("user offline")
}

// Send validates, persists and routes a direct message. The message is
// durably stored before any delivery attempt; an offline receiver is a
// normal outcome and the message stays in the log for later retrieval.
// The returned message carries the persisted id, timestamp and the expanded
// sender/receiver profiles.
func (h *Hub) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string, attachments []string) (*models.Message, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, fmt.Errorf("%w: sender and receiver are required", ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}

	msg := &models.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		Attachments: attachments,
	}
	if !msg.HasBody() {
		return nil, fmt.Errorf("%w: message needs content or an attachment", ErrValidation)
	}

	receiver, err := h.store.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if receiver == nil {
		return nil, fmt.Errorf("%w: receiver", ErrNotFound)
	}
	sender, err := h.store.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender", ErrNotFound)
	}

	// Store-then-forward: nothing is delivered unless the write succeeded.
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesSent.Inc()

	msg.Sender = sender
	msg.Receiver = receiver

	if h.deliverTo(receiverID, Event{Type: EventMessage, Message: msg}) {
		metrics.MessagesDelivered.WithLabelValues("delivered").Inc()
	} else {
		metrics.MessagesDelivered.WithLabelValues("offline").Inc()
	}

	return msg, nil
}

// Typing forwards a typing signal to the receiver if they are online.
// Best-effort: an offline receiver drops the signal silently.
func (h *Hub) Typing(senderID, receiverID uuid.UUID, isTyping bool) {
	if h.deliverTo(receiverID, Event{
		Type:     EventTyping,
		SenderID: senderID.String(),
		IsTyping: &isTyping,
	}) {
		metrics.SignalsForwarded.WithLabelValues("typing").Inc()
	}
}

// MarkRead flips every unread message from counterpartID addressed to
// readerID, then emits a read receipt to the counterpart if online.
func (h *Hub) MarkRead(ctx context.Context, readerID, counterpartID uuid.UUID) (int64, error) {
	count, err := h.store.MarkConversationRead(ctx, readerID, counterpartID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	now := time.Now().UTC()
	if h.deliverTo(counterpartID, Event{
		Type:     EventReadReceipt,
		ReaderID: readerID.String(),
		At:       &now,
	}) {
		metrics.SignalsForwarded.WithLabelValues("read_receipt").Inc()
	}
	return count, nil
}

// History returns the full conversation between userID and counterpartID in
// creation order and, as a side effect, marks the counterpart's unread
// messages to userID as read. The returned records carry the read flags as
// they were before this call, so a client can render "just read" state.
func (h *Hub) History(ctx context.Context, userID, counterpartID uuid.UUID) ([]models.Message, error) {
	counterpart, err := h.store.GetUserByID(ctx, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if counterpart == nil {
		return nil, fmt.Errorf("%w: counterpart", ErrNotFound)
	}

	messages, err := h.store.ConversationBetween(ctx, userID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if _, err := h.store.MarkConversationRead(ctx, userID, counterpartID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.HistoryLoads.Inc()
	return messages, nil
}

// Recent returns the recent-conversations summary for userID.
func (h *Hub) Recent(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	summaries, err := h.store.RecentConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return summaries, nil
}

// deliverTo routes an event to the user's current connection, if any.
func (h *Hub) deliverTo(userID uuid.UUID, ev Event) bool {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}

	h.mu.RLock()
	sess, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	if !sess.Deliver(ev) {
		h.log.Warn().
			Str("conn_id", connID).
			Str("user_id", userID.String()).
			Str("event", ev.Type).
			Msg("session buffer full, event dropped")
		return false
	}
	return true
}

// broadcast sends an event to every session, identified or not.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sess := range h.sessions {
		sess.Deliver(ev)
	}
}

// broadcastOnline sends the current online snapshot to every session.
func (h *Hub) broadcastOnline() {
	online := h.registry.Snapshot()
	users := make([]string, len(online))
	for i, id := range online {
		users[i] = id.String()
	}
	h.broadcast(Event{Type: EventOnline, Users: users})
}
