package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-backend/internal/logging"
)

// Client is one websocket session attached to the hub. All outbound frames
// go through the send channel so the write pump is the only goroutine
// touching the connection for writes.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient wraps an upgraded connection. The caller is expected to Register
// the client and start WritePump before reading.
func NewClient(h *Hub, id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}
}

// Enqueue queues a raw frame for delivery. It reports false when the send
// buffer is full, which the hub treats as a dead client. Frames offered to a
// closed client are dropped.
func (c *Client) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// SendJSON marshals v and queues it for this session only. A full buffer
// tears the client down.
func (c *Client) SendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.L().Error().Err(err).Str(logging.FieldSessionID, c.ID).Msg("marshal outbound frame")
		return
	}
	if !c.Enqueue(payload) {
		logging.L().Warn().Str(logging.FieldSessionID, c.ID).Msg("send buffer full, dropping client")
		c.hub.Unregister(c)
	}
}

// Close shuts the send channel once. The write pump drains and closes the
// underlying connection after that.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump consumes inbound frames and hands each one to handle. It returns
// when the connection errors or closes; the caller owns cleanup.
func (c *Client) ReadPump(handle func(*Client, []byte)) {
	defer c.conn.Close()
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logging.L().Debug().Err(err).Str(logging.FieldSessionID, c.ID).Msg("websocket read error")
			}
			return
		}
		handle(c, data)
	}
}

// WritePump flushes queued frames and keeps the connection alive with pings.
// It exits when the send channel closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logWriteError(err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logWriteError(err)
				return
			}
		}
	}
}

func (c *Client) logWriteError(err error) {
	var ev *zerolog.Event
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		ev = logging.L().Warn()
	} else {
		ev = logging.L().Debug()
	}
	ev.Err(err).Str(logging.FieldSessionID, c.ID).Msg("websocket write error")
}
