package api

import (
	"net/http"
	"net/url"
	"time"

	"MacroGate/internal/middleware"
	applogger "MacroGate/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 10 * time.Second

// StreamHandler pushes every broadcast evaluation to websocket clients.
type StreamHandler struct {
	logger   *applogger.Logger
	hub      *middleware.EvaluationHub
	upgrader websocket.Upgrader
	ping     time.Duration
}

func NewStreamHandler(logger *applogger.Logger, hub *middleware.EvaluationHub, allowOrigins []string, ping time.Duration) *StreamHandler {
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &StreamHandler{
		logger: logger.Component("stream_api"),
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowOrigins),
		},
		ping: ping,
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/evaluations", h.Serve)
}

func (h *StreamHandler) Serve(c echo.Context) error {
	sub, err := h.hub.Subscribe()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.hub.Unsubscribe(sub)
		h.logger.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	h.logger.Debug("stream client connected", applogger.Int("clients", h.hub.Len()))

	go h.readLoop(conn, sub)
	h.writeLoop(conn, sub)
	return nil
}

// readLoop discards client frames; it exists to process control frames
// and notice disconnects.
func (h *StreamHandler) readLoop(conn *websocket.Conn, sub *middleware.Subscriber) {
	defer h.hub.Unsubscribe(sub)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.ping))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writeLoop(conn *websocket.Conn, sub *middleware.Subscriber) {
	ticker := time.NewTicker(h.ping)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unsubscribe(sub)
				return
			}
		}
	}
}

func originChecker(allow []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allow))
	for _, o := range allow {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
