package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"taskflow/internal/metrics"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; access is gated by the token instead
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenParser resolves the token passed on the query string
type TokenParser interface {
	ParseToken(token string) (service.Actor, error)
}

// Client represents a single connected WebSocket subscriber
type Client struct {
	ID       uuid.UUID
	Username string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
}

// Hub fans published events out to every connected client. Client state is
// owned by the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	events     chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHub creates a hub whose event queue holds queueSize messages
func NewHub(queueSize int, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		events:     make(chan []byte, queueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
}

// Run dispatches events until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount()
			h.logger.Debug("websocket client connected", "client", client.ID, "user", client.Username)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Debug("websocket client disconnected", "client", client.ID, "user", client.Username)
			}
		case message := <-h.events:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.remove(client)
					h.logger.Warn("websocket client too slow, disconnected", "client", client.ID, "user", client.Username)
				}
			}
		}
	}
}

// Publish queues msg for delivery without blocking. It returns false when
// the queue is full or the hub has stopped.
func (h *Hub) Publish(msg []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.events <- msg:
		return true
	default:
		h.metrics.EventDropped()
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	h.metrics.SetClients(len(h.clients))
}

// writePump forwards queued messages to the connection and keeps it alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump discards inbound messages and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", "client", c.ID, "error", err)
			}
			return
		}
	}
}

// ServeWs authenticates the ?token= query parameter and upgrades the connection
func (h *Hub) ServeWs(parser TokenParser, c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	actor, err := parser.ParseToken(tokenString)
	if err != nil {
		h.logger.Info("websocket connection rejected", "reason", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if !model.ValidRole(actor.Role) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:       uuid.New(),
		Username: actor.Username,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, clientSendSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
