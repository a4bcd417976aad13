package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// LiveHandler streams hub events to websocket viewers
type LiveHandler struct {
	BaseHandler
	hub              *realtime.Hub
	autoLoginService *chatapp.AutoLoginService
	upgrader         websocket.Upgrader
	logger           *zap.Logger
}

// NewLiveHandler creates a new LiveHandler. Origin checking is left to the
// CORS layer; websocket handshakes from browsers already passed it.
func NewLiveHandler(hub *realtime.Hub, autoLoginService *chatapp.AutoLoginService, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{
		hub:              hub,
		autoLoginService: autoLoginService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes registers live streaming routes
func (h *LiveHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/chat/live/:topic", h.Stream)
}

func parseTopic(raw string) (realtime.Topic, bool) {
	switch realtime.Topic(raw) {
	case realtime.TopicStatus, realtime.TopicQR, realtime.TopicMessage:
		return realtime.Topic(raw), true
	}
	return "", false
}

// Stream upgrades the connection and relays the tenant's events for one
// topic until the client disconnects
func (h *LiveHandler) Stream(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	topic, ok := parseTopic(c.Param("topic"))
	if !ok {
		h.BadRequest(c, "Unknown topic, expected status, qr or message")
		return
	}

	sub := h.hub.Subscribe(tenantID, topic)
	if sub == nil {
		h.InternalError(c, "Live streaming is shutting down")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	// A viewer opening a live stream is a good moment to revive sessions.
	if h.autoLoginService != nil {
		h.autoLoginService.WarmupAsync(tenantID)
	}

	go h.writeLoop(conn, sub)
	h.readLoop(conn, sub)
}

// readLoop discards inbound frames and tears the stream down on disconnect
func (h *LiveHandler) readLoop(conn *websocket.Conn, sub *realtime.Subscription) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop relays hub events and keeps the connection alive with pings
func (h *LiveHandler) writeLoop(conn *websocket.Conn, sub *realtime.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
