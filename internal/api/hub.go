package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// Hub fans pin events out to connected websocket clients.
type Hub struct {
	clients  cmap.ConcurrentMap[string, *client]
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: cmap.New[*client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	return h.clients.Count()
}

// OnPinEvent broadcasts the event to every client. Clients that cannot keep up are disconnected.
func (h *Hub) OnPinEvent(event models.PinEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize pin event for live clients")
		return
	}

	for item := range h.clients.IterBuffered() {
		c := item.Val
		select {
		case c.send <- data:
		case <-c.done:
		default:
			h.logger.Warn().Str("client_id", c.id).Msg("Live client too slow, disconnecting")
			h.unregister(c)
		}
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	h.clients.Set(c.id, c)
	h.logger.Info().Str("client_id", c.id).Str("remote", r.RemoteAddr).Msg("Live client connected")

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	for item := range h.clients.IterBuffered() {
		h.unregister(item.Val)
	}
}

func (h *Hub) unregister(c *client) {
	c.closeOnce.Do(func() {
		h.clients.Remove(c.id)
		close(c.done)
		h.logger.Info().Str("client_id", c.id).Msg("Live client disconnected")
	})
}

// readPump discards client messages and detects closed connections.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client_id", c.id).Msg("Live client read failed")
			}
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.unregister(c)
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
