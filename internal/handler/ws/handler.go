package ws

import (
	"fmt"
	"net/http"
	"sync/atomic"

	applogger "ArbPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP connections and attaches them to the hub.
type Handler struct {
	hub    *Hub
	logger *applogger.Logger
	nextID atomic.Int64
}

// NewHandler creates the WebSocket handler.
func NewHandler(hub *Hub, logger *applogger.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger.With("ws"),
	}
}

// RegisterRoutes wires the handler into Echo.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the connection and starts the client pumps.
func (h *Handler) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("upgrade failed", applogger.Error(err))
		return nil // Upgrade already wrote the error response
	}

	id := fmt.Sprintf("client-%d", h.nextID.Add(1))
	client := newClient(id, conn, h.hub, h.logger)

	h.hub.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}
