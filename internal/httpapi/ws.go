// ABOUTME: Websocket admission and the transport adapter over gorilla connections
// ABOUTME: Tokens are verified before the upgrade; a bad token never reaches the dispatcher

package httpapi

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/metrics"
	"github.com/helplane/helplane/internal/session"
)

var errTransportClosed = errors.New("transport closed")

// wsTransport adapts a gorilla websocket connection to session.Transport.
// gorilla permits one concurrent writer, so every write holds the mutex.
type wsTransport struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTransportClosed
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.closed = true
		return err
	}
	return nil
}

func (t *wsTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// handleWS authenticates, upgrades, and runs the connection's read loop.
// The token comes from the Authorization header or, since browsers cannot
// set headers on websocket requests, the "token" query parameter.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token, errMsg := auth.TokenFromRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusUnauthorized, errMsg)
		return
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	transport := newWSTransport(wsConn)
	conn := session.NewConn(identity, transport)
	metrics.ConnectionsActive.Inc()
	s.logger.Info("websocket connected",
		"conn_id", conn.ID(),
		"user_id", identity.ID,
		"role", string(identity.Role))

	defer func() {
		s.dispatcher.Disconnect(conn)
		_ = transport.Close()
		metrics.ConnectionsActive.Dec()
		s.logger.Info("websocket disconnected", "conn_id", conn.ID())
	}()

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatcher.HandleFrame(r.Context(), conn, data)
	}
}
