package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sahilmundada/rathialmuninetwork/internal/api/middleware"
	"github.com/sahilmundada/rathialmuninetwork/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Tokens gate the upgrade; origin alone proves nothing for non-browser
	// clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket upgrades the connection and runs its read/write pumps until the
// transport closes. The connection is admitted unidentified; presence starts
// only once the client announces its identity.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	authID := middleware.GetUserFromContext(r.Context())

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := chat.NewConn(h.hub, ws, authID, h.log)
	conn.Run(r.Context())
}
