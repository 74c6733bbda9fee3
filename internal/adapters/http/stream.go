package http

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/cpandares/random-places/internal/app"
)

// StreamConfig tunes session WebSocket connections.
type StreamConfig struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512,
	}
}

// Stream upgrades to a WebSocket and pushes a SessionResponse frame for the
// current state and every later change. Intermediate states are skipped for
// slow clients. The socket closes when the session is deleted.
func (h *Handler) Stream(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("websocket upgrade failed", "session_id", s.ID(), "error", err)
		return nil
	}
	defer conn.Close()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	h.logger.Debug("stream opened", "session_id", s.ID(), "remote", c.RealIP())
	go h.readPump(conn, unsubscribe)
	h.writePump(conn, updates)
	h.logger.Debug("stream closed", "session_id", s.ID())
	return nil
}

// writePump is the only writer on conn.
func (h *Handler) writePump(conn *websocket.Conn, updates <-chan app.SessionState) {
	ticker := time.NewTicker(h.stream.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case st, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(toSessionResponse(st)); err != nil {
				h.logger.Debug("stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.stream.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
// Clients send nothing meaningful. When the peer goes away the subscription
// is dropped, which ends writePump.
func (h *Handler) readPump(conn *websocket.Conn, unsubscribe func()) {
	defer unsubscribe()

	conn.SetReadLimit(h.stream.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.stream.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.stream.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("unexpected websocket close", "error", err)
			}
			return
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
