package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/session"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Browsers connect through the gateway
	},
}

// Hub pushes session events to WebSocket subscribers of that session.
// It implements session.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Notify queues e for every subscriber of its session. Slow subscribers miss
// events rather than holding up the caller.
func (h *Hub) Notify(e session.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.clients[e.SessionID]
	if len(subs) == 0 {
		return
	}

	msg, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("encode session event")
		return
	}
	for c := range subs {
		select {
		case c.send <- msg:
		default:
			log.Debug().Str("session_id", e.SessionID).Msg("dropping event for slow subscriber")
		}
	}
}

// Subscribers returns the number of open connections for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// ServeHTTP upgrades GET /api/sessions/{id}/live and streams that session's
// events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(sessionID, c) {
		conn.Close()
		return
	}
	defer h.unregister(sessionID, c)

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, subs := range h.clients {
		for c := range subs {
			c.conn.Close()
		}
	}
}

func (h *Hub) register(sessionID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	subs := h.clients[sessionID]
	if subs == nil {
		subs = make(map[*client]struct{})
		h.clients[sessionID] = subs
	}
	subs[c] = struct{}{}
	return true
}

func (h *Hub) unregister(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.clients[sessionID]
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.clients, sessionID)
	}
	close(c.send)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
