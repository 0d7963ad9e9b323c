package ws

import (
	"sync"
	"time"

	applogger "ArbPull/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
	sendBufferSize = 64
)

// clientMessage is the inbound subscribe/unsubscribe frame.
type clientMessage struct {
	Type   string   `json:"type"`
	Sports []string `json:"sports,omitempty"`
}

// Client is one WebSocket subscriber. Slow clients get disconnected when
// their send buffer fills up.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan interface{}
	hub    *Hub
	logger *applogger.Logger

	filterMu sync.RWMutex
	sports   map[string]bool
}

func newClient(id string, conn *websocket.Conn, hub *Hub, logger *applogger.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		send:   make(chan interface{}, sendBufferSize),
		hub:    hub,
		logger: logger,
	}
}

// trySend queues a message without blocking. False means the buffer is full.
func (c *Client) trySend(msg interface{}) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// wantsSport reports whether the client's filter accepts a sport key.
// An empty filter accepts everything.
func (c *Client) wantsSport(sportKey string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	if len(c.sports) == 0 {
		return true
	}
	return c.sports[sportKey]
}

func (c *Client) setFilter(sports []string) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	if len(sports) == 0 {
		c.sports = nil
		return
	}
	c.sports = make(map[string]bool, len(sports))
	for _, s := range sports {
		c.sports[s] = true
	}
}

// readPump consumes subscribe frames until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close",
					applogger.String("client", c.id),
					applogger.Error(err),
				)
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			c.setFilter(msg.Sports)
		case "unsubscribe":
			c.setFilter(nil)
		}
	}
}

// writePump pushes hub messages and pings to the peer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("write failed",
					applogger.String("client", c.id),
					applogger.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
