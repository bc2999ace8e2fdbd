// ABOUTME: The /ws endpoint: websocket upgrade, session lifecycle, and the message receive loop.
// ABOUTME: Every inbound message is handed to dispatch as a detached task, never awaited inline.

package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bluepigwx/agentlite/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Non-browser clients; the protocol carries no cookies or origin trust.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection, registers a session, announces it
// to the client, and runs the receive loop until disconnect.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s := g.sessions.Accept(conn)
	defer func() {
		s.Cleanup()
		g.sessions.Disconnect(s)
		_ = s.Close()
	}()

	connected := protocol.NewResponse("connected", protocol.StatusOK, map[string]any{
		"session_id": s.ID,
	})
	if err := s.SendEnvelope(connected); err != nil {
		g.logger.Warn("failed to send connected envelope", "session_id", s.ID, "error", err)
		return
	}

	// Receive loop. Dispatch must not be awaited here: a handler may issue a
	// request back to this very client, and its reply arrives through this
	// loop. Awaiting dispatch inline would deadlock that exchange.
	for {
		raw, err := s.ReadText()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("session read error", "session_id", s.ID, "error", err)
			} else {
				g.logger.Info("client disconnected", "session_id", s.ID)
			}
			return
		}

		g.router.Dispatch(r.Context(), s, raw)
	}
}
