// Package hub tracks live websocket sessions and their chat room
// subscriptions, and fans server events out to them.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"chat-backend/internal/logging"
)

// Config carries the websocket tuning knobs shared by all clients.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// Hub is the in-process fan-out for websocket traffic. Rooms are keyed by
// chat ID and hold the subscribed sessions; an empty room is removed.
type Hub struct {
	cfg Config

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[int]map[string]*Client
}

// NewHub creates an empty hub.
func NewHub(cfg Config) *Hub {
	return &Hub{
		cfg:     cfg,
		clients: make(map[string]*Client),
		rooms:   make(map[int]map[string]*Client),
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes the session from every room and from the hub, then
// closes it. Calling it again for the same session is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for chatID, members := range h.rooms {
		if _, ok := members[c.ID]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Join subscribes the session to a chat room. Joining twice is harmless;
// joining after Unregister is ignored.
func (h *Hub) Join(chatID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	members, ok := h.rooms[chatID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[chatID] = members
	}
	members[c.ID] = c
}

// Leave unsubscribes the session from a chat room.
func (h *Hub) Leave(chatID int, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[chatID]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(h.rooms, chatID)
	}
}

// InRoom reports whether the session is currently subscribed to the chat.
func (h *Hub) InRoom(chatID int, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[chatID][sessionID]
	return ok
}

// SendToSession sends v to one session. Unknown sessions are ignored.
func (h *Hub) SendToSession(sessionID string, v any) {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.SendJSON(v)
}

// BroadcastToChat sends v to every session in the chat room, skipping
// exceptID when non-empty. Sessions whose buffers are full are torn down
// after the fan-out.
func (h *Hub) BroadcastToChat(chatID int, v any, exceptID string) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.L().Error().Err(err).Int(logging.FieldChatID, chatID).Msg("marshal chat broadcast")
		return
	}

	h.mu.RLock()
	var stuck []*Client
	for id, c := range h.rooms[chatID] {
		if id == exceptID {
			continue
		}
		if !c.Enqueue(payload) {
			stuck = append(stuck, c)
		}
	}
	h.mu.RUnlock()

	h.dropStuck(stuck)
}

// BroadcastAll sends v to every connected session, skipping exceptID when
// non-empty.
func (h *Hub) BroadcastAll(v any, exceptID string) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.L().Error().Err(err).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	var stuck []*Client
	for id, c := range h.clients {
		if id == exceptID {
			continue
		}
		if !c.Enqueue(payload) {
			stuck = append(stuck, c)
		}
	}
	h.mu.RUnlock()

	h.dropStuck(stuck)
}

func (h *Hub) dropStuck(stuck []*Client) {
	for _, c := range stuck {
		logging.L().Warn().Str(logging.FieldSessionID, c.ID).Msg("send buffer full, dropping client")
		h.Unregister(c)
	}
}
