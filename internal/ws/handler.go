// Package ws is the websocket transport: it upgrades requests, assigns
// session ids, and feeds decoded frames into the chat service. All chat
// semantics live in the service; this layer only moves frames.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-backend/internal/hub"
	"chat-backend/internal/logging"
	"chat-backend/internal/observability"
	"chat-backend/internal/protocol"
	"chat-backend/internal/service"
)

// Handler owns the websocket endpoint.
type Handler struct {
	hub *hub.Hub
	svc service.ChatService
}

// NewHandler constructs a Handler.
func NewHandler(h *hub.Hub, svc service.ChatService) *Handler {
	return &Handler{hub: h, svc: svc}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs the session until the peer goes
// away. Authentication happens in-band over the socket, not at upgrade time.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-backend/ws").Start(c.Request.Context(), "ws.handshake")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		logging.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	span.End()

	sessionID := newSessionID()
	requestID := observability.RequestIDFromRequest(c.Request)
	ip := observability.IPFromRequest(c.Request)
	connectedAt := time.Now()

	client := hub.NewClient(h.hub, sessionID, conn)
	h.hub.Register(client)
	go client.WritePump()

	observability.IncWSActive()
	observability.IncWSEvent("connect")
	connectEvent := observability.NewEvent("ws_connect")
	connectEvent.SessionID = sessionID
	connectEvent.RequestID = requestID
	connectEvent.IP = ip
	observability.PublishEvent(ctx, "sessions.connected", connectEvent)

	logging.L().Info().
		Str(logging.FieldSessionID, sessionID).
		Str("ip", ip).
		Msg("websocket connected")

	defer func() {
		h.svc.HandleDisconnect(client)

		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		disconnectEvent := observability.NewEvent("ws_disconnect")
		disconnectEvent.SessionID = sessionID
		disconnectEvent.RequestID = requestID
		disconnectEvent.IP = ip
		disconnectEvent.Payload = map[string]any{
			"duration_ms": time.Since(connectedAt).Milliseconds(),
		}
		// The request context is gone once the read loop exits.
		observability.PublishEvent(context.Background(), "sessions.disconnected", disconnectEvent)

		logging.L().Info().
			Str(logging.FieldSessionID, sessionID).
			Dur("duration", time.Since(connectedAt)).
			Msg("websocket disconnected")
	}()

	client.ReadPump(h.dispatch(ctx))
}

// dispatch decodes one inbound frame and routes it. A panicking handler loses
// the frame, not the process.
func (h *Handler) dispatch(ctx context.Context) func(*hub.Client, []byte) {
	return func(client *hub.Client, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				logging.L().Error().
					Interface("panic", r).
					Str(logging.FieldSessionID, client.ID).
					Msg("panic while handling websocket event")
				client.SendJSON(protocol.NewErrorMessage("Internal server error"))
			}
		}()

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			observability.IncWSEvent("malformed")
			client.SendJSON(protocol.NewErrorMessage("Invalid message format"))
			return
		}

		observability.IncWSEvent(eventLabel(msg.Type))

		switch msg.Type {
		case protocol.TypeAuthenticate:
			h.svc.HandleAuthenticate(ctx, client, msg.Token)
		case protocol.TypeJoinChat:
			h.svc.HandleJoinChat(ctx, client, msg.ChatID)
		case protocol.TypeLeaveChat:
			h.svc.HandleLeaveChat(ctx, client, msg.ChatID)
		case protocol.TypeSendMessage:
			h.svc.HandleSendMessage(ctx, client, msg.ChatID, msg.Content)
		case protocol.TypeTypingStart:
			h.svc.HandleTyping(ctx, client, msg.ChatID, true)
		case protocol.TypeTypingStop:
			h.svc.HandleTyping(ctx, client, msg.ChatID, false)
		case protocol.TypeMarkMessagesRead:
			h.svc.HandleMarkRead(ctx, client, msg.ChatID)
		default:
			client.SendJSON(protocol.NewErrorMessage("Unknown message type: " + msg.Type))
		}
	}
}

// eventLabel keeps the per-event metric to a fixed label set.
func eventLabel(msgType string) string {
	switch msgType {
	case protocol.TypeAuthenticate, protocol.TypeJoinChat, protocol.TypeLeaveChat,
		protocol.TypeSendMessage, protocol.TypeTypingStart, protocol.TypeTypingStop,
		protocol.TypeMarkMessagesRead:
		return msgType
	default:
		return "unknown"
	}
}
