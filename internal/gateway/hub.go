package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentden/agentden/internal/api"
	"github.com/agentden/agentden/internal/db"
	"github.com/agentden/agentden/internal/model"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// client is one connected observer. Responses go to the owning client
// only; notifications fan out to every authenticated client.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu            sync.Mutex
	authenticated bool
}

func (c *client) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *client) setAuthenticated(v bool) {
	c.mu.Lock()
	c.authenticated = v
	c.mu.Unlock()
}

// enqueue drops the message if the client's send buffer is full; a stalled
// observer must never block the supervisor loop.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// enqueueWait waits up to timeout for buffer space. Command responses use
// this path: a momentarily full buffer must not lose the answer to the
// client's own request.
func (c *client) enqueueWait(msg []byte, timeout time.Duration) bool {
	select {
	case c.send <- msg:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (c *client) writePump() {
	defer c.conn.Close() //nolint:errcheck
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub tracks connected clients and implements model.Sink: every supervisor
// and ledger notification is journaled and broadcast.
type Hub struct {
	log   *zap.Logger
	store *db.Store

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(store *db.Store, log *zap.Logger) *Hub {
	return &Hub{log: log, store: store, clients: map[*client]struct{}{}}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish broadcasts one event to all authenticated clients. Called from
// the supervisor's event loop; it never blocks on a slow client.
func (h *Hub) Publish(ev model.Event) {
	note := api.Notification{
		SchemaVersion: api.SchemaVersion,
		Event:         ev.Type,
		Payload:       ev.Payload,
		EmittedAt:     api.TS(ev.At),
	}
	raw, err := json.Marshal(note)
	if err != nil {
		h.log.Error("marshal notification", zap.String("event", ev.Type), zap.Error(err))
		return
	}

	if h.store != nil {
		if err := h.store.AppendJournal(context.Background(), ev.Type, ev.Payload, ev.At); err != nil {
			h.log.Warn("journal notification", zap.String("event", ev.Type), zap.Error(err))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.isAuthenticated() {
			continue
		}
		if !c.enqueue(raw) {
			h.log.Warn("dropping notification for slow client", zap.String("event", ev.Type))
		}
	}
}

// ClientCount reports connected clients, for the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
