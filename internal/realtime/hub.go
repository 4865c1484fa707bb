// Package realtime implements the notification/chat fan-out layer: live
// connection tracking, room membership, chat broadcast, delivery tracking, and
// admin-only alerts.
package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cartlane/cartlane/internal/domain"
	"github.com/cartlane/cartlane/internal/metrics"
)

// Conn is a live socket connection as seen by the fan-out layer.
// Implementations must tolerate concurrent Send calls.
type Conn interface {
	ID() string
	User() *domain.User
	Send(ctx context.Context, event string, payload any) error
}

// Hub tracks live connections and their room membership. Rooms exist from the
// first join; an empty room is removed from the table on the last leave, with
// no other teardown required.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	rooms  map[string]map[string]struct{}
	joined map[string]map[string]struct{} // conn id -> rooms, for disconnect cleanup
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]Conn),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Add registers a live connection.
func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Remove drops a connection and all its room memberships.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
	for room := range h.joined[connID] {
		h.leaveLocked(connID, room)
	}
	delete(h.joined, connID)
}

// Get returns the connection with the given id, or nil.
func (h *Hub) Get(connID string) Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[connID]
}

// IsConnected reports whether the connection is still live.
func (h *Hub) IsConnected(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[connID]
	return ok
}

// Join adds a known connection to a room. Idempotent; unknown connections are
// ignored (they can no longer receive anything).
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}

	if _, ok := h.joined[connID]; !ok {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][room] = struct{}{}
}

// Leave removes a connection from a room. Idempotent.
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, room)
	if joined, ok := h.joined[connID]; ok {
		delete(joined, room)
	}
}

func (h *Hub) leaveLocked(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the connection is currently a member of the room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// Members returns a snapshot of the room's live connections.
func (h *Hub) Members(room string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var members []Conn
	for connID := range h.rooms[room] {
		if c, ok := h.conns[connID]; ok {
			members = append(members, c)
		}
	}
	return members
}

// Broadcast delivers an event to every member of a room. Best-effort: a failed
// send means the recipient is already gone and there is nothing to do.
func (h *Hub) Broadcast(ctx context.Context, room, event string, payload any) {
	h.BroadcastExcept(ctx, room, "", event, payload)
}

// BroadcastExcept delivers an event to every member of a room except one
// connection (typically the producer of the event).
func (h *Hub) BroadcastExcept(ctx context.Context, room, exceptID, event string, payload any) {
	metrics.Broadcasts.WithLabelValues(roomKind(room)).Inc()

	for _, c := range h.Members(room) {
		if c.ID() == exceptID {
			continue
		}
		if err := c.Send(ctx, event, payload); err != nil {
			slog.Debug("room broadcast send failed", "room", room, "conn_id", c.ID(), "event", event, "error", err)
		}
	}
}

func roomKind(room string) string {
	kind, _, ok := strings.Cut(room, ":")
	if !ok {
		return "other"
	}
	return kind
}
