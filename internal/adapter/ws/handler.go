// Package ws implements the WebSocket adapter for pushing real-time events
// to signed-in clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn wraps a single WebSocket connection owned by one user.
type conn struct {
	ws     *websocket.Conn
	userID string
	cancel context.CancelFunc
	mu     sync.Mutex
}

func (c *conn) write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// UserResolver returns the ID of the authenticated user for a request.
type UserResolver func(r *http.Request) (string, bool)

// Hub manages active WebSocket connections indexed by user.
type Hub struct {
	mu             sync.RWMutex
	conns          map[*conn]struct{}
	byUser         map[string]map[*conn]struct{}
	resolve        UserResolver
	allowedOrigins []string
}

// NewHub creates a hub. resolve identifies the caller on upgrade; origins
// lists accepted Origin host patterns (empty accepts any origin).
func NewHub(resolve UserResolver, origins []string) *Hub {
	return &Hub{
		conns:          make(map[*conn]struct{}),
		byUser:         make(map[string]map[*conn]struct{}),
		resolve:        resolve,
		allowedOrigins: origins,
	}
}

// HandleWS upgrades an authenticated request to a WebSocket connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolve(r)
	if !ok {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.allowedOrigins,
		InsecureSkipVerify: len(h.allowedOrigins) == 0,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The connection outlives the HTTP request context.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &conn{ws: ws, userID: userID, cancel: cancel}
	h.add(c)

	slog.Info("websocket connected", "user_id", userID, "remote", r.RemoteAddr)

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}
	h.deliver(ctx, h.snapshot(nil), data)
}

// SendTo sends a message to every connection of the given users.
func (h *Hub) SendTo(ctx context.Context, userIDs []string, msg Message) {
	if len(userIDs) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}
	h.deliver(ctx, h.snapshot(userIDs), data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// UserCount returns the number of distinct connected users.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Close terminates all connections.
func (h *Hub) Close() {
	for _, c := range h.snapshot(nil) {
		_ = c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		h.remove(c)
	}
}

// snapshot returns the target connections; nil userIDs selects all.
func (h *Hub) snapshot(userIDs []string) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*conn
	if userIDs == nil {
		out = make([]*conn, 0, len(h.conns))
		for c := range h.conns {
			out = append(out, c)
		}
		return out
	}
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for c := range h.byUser[id] {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) deliver(ctx context.Context, targets []*conn, data []byte) {
	for _, c := range targets {
		if err := c.write(ctx, data); err != nil {
			slog.Debug("websocket write failed", "user_id", c.userID, "error", err)
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
	if h.byUser[c.userID] == nil {
		h.byUser[c.userID] = make(map[*conn]struct{})
	}
	h.byUser[c.userID][c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	c.cancel()
	delete(h.conns, c)
	if set := h.byUser[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.userID)
		}
	}
	slog.Info("websocket disconnected", "user_id", c.userID)
}
