package chat

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// Hub multiplexes live connections into rooms.
//
// Room membership is volatile: it exists only as long as the connections do
// and is rebuilt by clients rejoining after a reconnect or server restart.
// A connection may sit in any number of rooms at once. Join performs no
// authorization; callers validate membership (friend gate, group membership)
// before calling.
type Hub struct {
	mu sync.RWMutex

	// conns maps connection id to client.
	conns map[string]*Client

	// rooms maps room id to the member connections.
	rooms map[string]map[string]*Client

	logger zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Client),
		rooms:  make(map[string]map[string]*Client),
		logger: logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// register adds a freshly upgraded connection.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.connID] = c
	h.logger.Info().
		Str("conn_id", c.connID).
		Str("user_id", c.user.ID).
		Int("total_conns", len(h.conns)).
		Msg("Connection registered.")
}

// unregister drops the connection and removes it from every room it joined.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.conns[c.connID]; !ok || current != c {
		return
	}
	delete(h.conns, c.connID)

	for roomID := range c.rooms {
		h.removeFromRoom(roomID, c.connID)
	}
	c.rooms = make(map[string]struct{})

	h.logger.Info().
		Str("conn_id", c.connID).
		Int("total_conns", len(h.conns)).
		Msg("Connection unregistered.")
}

// Join adds the connection to a room. Unknown connections are ignored.
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		h.logger.Warn().Str("conn_id", connID).Str("room_id", roomID).
			Msg("Join for unknown connection ignored.")
		return
	}

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[connID] = c
	c.rooms[roomID] = struct{}{}
}

// Leave removes the connection from one room. Idempotent.
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.conns[connID]; ok {
		delete(c.rooms, roomID)
	}
	h.removeFromRoom(roomID, connID)
}

// LeaveAll removes the connection from every room it joined while keeping
// the connection registered. Used by the explicit leave handshake.
func (h *Hub) LeaveAll(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	for roomID := range c.rooms {
		h.removeFromRoom(roomID, connID)
	}
	c.rooms = make(map[string]struct{})
}

// removeFromRoom deletes the membership entry and drops empty rooms.
// Caller holds h.mu.
func (h *Hub) removeFromRoom(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// BroadcastExceptSender delivers event to every connection in the room other
// than the sender. Delivery is fire-and-forget per recipient: a recipient
// with a full or closed queue is skipped so one slow peer never stalls the
// sender or the rest of the room.
func (h *Hub) BroadcastExceptSender(roomID, senderConnID string, event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(event.Type)).
			Msg("Error marshaling event for broadcast.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, c := range h.rooms[roomID] {
		if connID == senderConnID {
			continue
		}
		if !c.enqueue(frame) {
			h.logger.Warn().
				Str("conn_id", connID).
				Str("room_id", roomID).
				Str("event_type", string(event.Type)).
				Msg("Recipient queue full or closed, skipping delivery.")
		}
	}
}

// RoomSize returns the current number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown kicks every connection. Called during graceful server shutdown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.mu.Unlock()

	reason := errs.NewError(errs.ErrSessionKicked).Message
	for _, c := range conns {
		c.Kick(reason)
	}

	h.logger.Info().Int("kicked", len(conns)).Msg("Hub shutdown complete.")
}
