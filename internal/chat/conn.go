package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 * 1024
	outboundBuffer = 64
	opTimeout      = 10 * time.Second
)

// Conn is one live websocket connection. It runs a read pump that decodes
// client frames and dispatches them against the hub, and a write pump that
// drains the outbound event queue. A connection starts unidentified; its
// presence binding in the registry is its identified state.
type Conn struct {
	id     string
	hub    *Hub
	ws     *websocket.Conn
	authID uuid.UUID // identity vouched for by the connection's auth token
	log    zerolog.Logger

	out      chan Event
	mu       sync.Mutex
	closed   bool
	teardown sync.Once
}

// NewConn wraps an upgraded websocket. authID is the verified identity the
// external auth collaborator admitted the connection under; an identify
// announcement for any other user is ignored.
func NewConn(hub *Hub, ws *websocket.Conn, authID uuid.UUID, logger zerolog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		hub:    hub,
		ws:     ws,
		authID: authID,
		log:    logger.With().Str("conn_id", id).Logger(),
		out:    make(chan Event, outboundBuffer),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Deliver queues an event for the write pump. Never blocks; returns false
// if the connection is closed or its buffer is full.
func (c *Conn) Deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

// Run registers the connection and pumps it until the transport closes.
// Teardown (deregistration, presence unbind, offline broadcast) runs exactly
// once, on clean and error-path closes alike.
func (c *Conn) Run(ctx context.Context) {
	c.hub.Register(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Conn) close() {
	c.teardown.Do(func() {
		c.hub.Disconnect(c.id)
		c.mu.Lock()
		c.closed = true
		close(c.out)
		c.mu.Unlock()
		c.ws.Close()
	})
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.close()

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("connection closed unexpectedly")
			}
			return
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one client frame. Failures are reported to this
// connection only; they never reach the counterpart and never take down the
// pumps.
func (c *Conn) dispatch(ctx context.Context, frame ClientFrame) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch frame.Type {
	case FrameIdentify:
		userID, err := uuid.Parse(frame.UserID)
		if err != nil || userID == uuid.Nil {
			c.log.Debug().Str("user_id", frame.UserID).Msg("ignoring invalid identify")
			return
		}
		if c.authID != uuid.Nil && userID != c.authID {
			c.log.Warn().
				Str("claimed", userID.String()).
				Str("authenticated", c.authID.String()).
				Msg("identify for another user ignored")
			return
		}
		if err := c.hub.Identify(opCtx, c.id, userID); err != nil {
			c.log.Debug().Err(err).Msg("identify rejected")
		}

	case FrameSend:
		userID, ok := c.user()
		if !ok {
			c.deliverError("identify before sending")
			return
		}
		receiverID, err := uuid.Parse(frame.ReceiverID)
		if err != nil {
			c.deliverError("invalid receiver id")
			return
		}
		msg, err := c.hub.Send(opCtx, userID, receiverID, frame.Content, frame.Attachments)
		if err != nil {
			c.log.Warn().Err(err).Msg("send failed")
			c.deliverError(reasonFor(err))
			return
		}
		c.Deliver(Event{Type: EventAck, Message: msg})

	case FrameTyping:
		userID, ok := c.user()
		if !ok {
			return
		}
		receiverID, err := uuid.Parse(frame.ReceiverID)
		if err != nil {
			return
		}
		c.hub.Typing(userID, receiverID, frame.IsTyping)

	case FrameMarkRead:
		userID, ok := c.user()
		if !ok {
			return
		}
		counterpartID, err := uuid.Parse(frame.CounterpartID)
		if err != nil {
			return
		}
		if _, err := c.hub.MarkRead(opCtx, userID, counterpartID); err != nil {
			c.log.Warn().Err(err).Msg("mark read failed")
		}

	case FrameLoadHistory:
		userID, ok := c.user()
		if !ok {
			c.deliverError("identify before loading history")
			return
		}
		counterpartID, err := uuid.Parse(frame.CounterpartID)
		if err != nil {
			c.deliverError("invalid counterpart id")
			return
		}
		messages, err := c.hub.History(opCtx, userID, counterpartID)
		if err != nil {
			c.log.Warn().Err(err).Msg("history load failed")
			c.deliverError(reasonFor(err))
			return
		}
		if messages == nil {
			messages = []models.Message{}
		}
		c.Deliver(Event{Type: EventHistory, Messages: messages})

	default:
		c.log.Debug().Str("frame", frame.Type).Msg("unknown frame type")
	}
}

// user returns the identity bound to this connection, if it is still the
// current binding. A connection superseded by a newer identify loses it.
func (c *Conn) user() (uuid.UUID, bool) {
	return c.hub.Registry().UserOf(c.id)
}

func (c *Conn) deliverError(reason string) {
	c.Deliver(Event{Type: EventDeliveryError, Reason: reason})
}

// reasonFor maps an operation error to a client-facing reason string.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid message"
	case errors.Is(err, ErrNotFound):
		return "user not found"
	default:
		return "failed to send message"
	}
}
