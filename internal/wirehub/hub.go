// Package wirehub is the transport layer: it owns live websocket
// connections, assigns their connection identities, and routes inbound
// frames to exactly one state-machine transition each.
package wirehub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

var errUnreachable = errors.New("connection not registered")

// Hub tracks live connections by their generated connection identity. The
// identity doubles as the caller's credential inside the session machine, so
// it is never derived from anything the client supplies.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

// Register stores the connection under a fresh identity and returns it.
func (h *Hub) Register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.conns[id] = conn
	h.mu.Unlock()
	return id
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send implements fanout.Sender over the live socket. Writes are bounded so
// one stalled peer cannot hold up a fan-out to the other.
func (h *Hub) Send(ctx context.Context, connID string, payload []byte) error {
	h.mu.RLock()
	conn := h.conns[connID]
	h.mu.RUnlock()
	if conn == nil {
		return errUnreachable
	}
	wctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return conn.Write(wctx, websocket.MessageText, payload)
}
