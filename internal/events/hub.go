// Package events publishes mode transitions to dashboards and logs.
//
// Hub is a websocket endpoint that pushes every transition to connected
// clients as JSON. LogConsumer writes transitions to a structured log. Both
// satisfy the runner's ActionConsumer interface.
package events

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ironsheep/desk-mode-mcp/internal/mode"
)

// Message types.
const (
	TypeWelcome    = "WELCOME"
	TypeTransition = "TRANSITION"
	TypePing       = "PING"
	TypePong       = "PONG"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 50 * time.Second
)

// Message is the envelope of everything sent over the socket.
type Message struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// Hub tracks websocket clients and fans messages out to them.
// It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	upgrader websocket.Upgrader
	logger   *slog.Logger
	dropped  atomic.Int64

	// State, when set, is sent in the welcome message.
	State func() mode.State
}

// NewHub creates a hub. A nil logger discards output.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
// The optional clientId query parameter names the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := r.URL.Query().Get("clientId")
	if id == "" {
		id = uuid.NewString()
	}
	c := &client{id: id, conn: conn, send: make(chan Message, sendBuffer)}

	if !h.register(c) {
		conn.Close()
		return
	}
	h.logger.Info("websocket client connected", "client", id)

	go h.writePump(c)

	welcome := map[string]any{"message": "connected to desk mode events"}
	if h.State != nil {
		welcome["state"] = h.State()
	}
	h.enqueue(c, Message{Type: TypeWelcome, ClientID: id, Timestamp: time.Now().Unix(), Payload: welcome})

	h.readPump(c)
	h.unregister(c)
	h.logger.Info("websocket client disconnected", "client", id)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if old, ok := h.clients[c.id]; ok {
		close(old.send)
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// enqueue queues a message without blocking. Callers must not hold mu for
// writing.
func (h *Hub) enqueue(c *client, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "client", c.id, "error", err)
			}
			return
		}
		if msg.Type == TypePing {
			h.enqueue(c, Message{Type: TypePong, ClientID: c.id, Timestamp: time.Now().Unix()})
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client and returns how many accepted it.
// Clients whose buffers are full miss the message.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		select {
		case c.send <- msg:
			sent++
		default:
			h.dropped.Add(1)
		}
	}
	return sent
}

// OnTransition broadcasts a transition. It never fails.
func (h *Hub) OnTransition(_ context.Context, t mode.Transition) error {
	n := h.Broadcast(Message{Type: TypeTransition, Payload: t, Timestamp: t.At.Unix()})
	h.logger.Debug("transition broadcast", "transition", t.ID.String(), "clients", n)
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of messages discarded because a client was
// too slow.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}
