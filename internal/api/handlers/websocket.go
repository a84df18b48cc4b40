package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"limitedtracker/internal/api/ws"
	"limitedtracker/internal/logger"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.L()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With(zap.String("component", "ws_handler")),
	}
}

// HandleConnection subscribes the socket to a player's snapshot updates
// until the client goes away.
func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	robloxUserID, ok := parseID(c.QueryParam("robloxUserId"))
	if !ok {
		return ErrBadRequest(c, "invalid roblox user id")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	h.hub.Register(robloxUserID, conn)
	defer h.hub.Unregister(robloxUserID, conn)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *WebSocketHandler) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
