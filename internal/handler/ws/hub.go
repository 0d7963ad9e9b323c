package ws

import (
	"context"
	"time"

	"ArbPull/internal/domain/models"
	applogger "ArbPull/pkg/logger"
)

// serverMessage is the outbound frame wrapping opportunities.
type serverMessage struct {
	Type      string                      `json:"type"`
	Payload   models.ArbitrageOpportunity `json:"payload"`
	Timestamp time.Time                   `json:"timestamp"`
}

// Hub fans detected opportunities out to connected WebSocket clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.ArbitrageOpportunity
	logger     *applogger.Logger
}

// NewHub creates a hub. Run must be called before serving connections.
func NewHub(logger *applogger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.ArbitrageOpportunity, 512),
		logger:     logger.With("ws"),
	}
}

// Run is the hub's main loop. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("client connected",
				applogger.String("client", c.id),
				applogger.Int("total", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("client disconnected",
					applogger.String("client", c.id),
					applogger.Int("total", len(h.clients)),
				)
			}

		case opp := <-h.broadcast:
			h.fanOut(opp)
		}
	}
}

// Broadcast queues opportunities for delivery. Never blocks the scanner;
// when the buffer is full the overflow is dropped.
func (h *Hub) Broadcast(opps []models.ArbitrageOpportunity) {
	for _, opp := range opps {
		select {
		case h.broadcast <- opp:
		default:
			h.logger.Warn("broadcast buffer full, dropping opportunity",
				applogger.String("game", opp.GameID),
			)
		}
	}
}

func (h *Hub) fanOut(opp models.ArbitrageOpportunity) {
	msg := serverMessage{
		Type:      "opportunity",
		Payload:   opp,
		Timestamp: time.Now(),
	}

	for c := range h.clients {
		if !c.wantsSport(opp.SportKey) {
			continue
		}
		if !c.trySend(msg) {
			// Buffer full means the client cannot keep up.
			h.logger.Warn("client too slow, disconnecting",
				applogger.String("client", c.id),
			)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) shutdown() {
	h.logger.Info("hub shutting down", applogger.Int("clients", len(h.clients)))
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
