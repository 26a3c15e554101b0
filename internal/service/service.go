// Package service implements the chat backend's realtime operations: session
// authentication, room membership, the message send pipeline, and the
// presence, typing and read-receipt broadcasts.
package service

import (
	"context"

	"chat-backend/internal/hub"
)

// Hub is the fan-out surface the service drives. *hub.Hub satisfies it; tests
// substitute a recorder.
type Hub interface {
	Join(chatID int, c *hub.Client)
	Leave(chatID int, c *hub.Client)
	Unregister(c *hub.Client)
	SendToSession(sessionID string, v any)
	BroadcastToChat(chatID int, v any, exceptID string)
	BroadcastAll(v any, exceptID string)
}

// ChatService handles every inbound websocket event. Implementations reply
// and broadcast through the hub rather than returning values; the transport
// layer only decodes frames and dispatches.
type ChatService interface {
	HandleAuthenticate(ctx context.Context, client *hub.Client, token string)
	HandleJoinChat(ctx context.Context, client *hub.Client, chatID int)
	HandleLeaveChat(ctx context.Context, client *hub.Client, chatID int)
	HandleSendMessage(ctx context.Context, client *hub.Client, chatID int, content string)
	HandleTyping(ctx context.Context, client *hub.Client, chatID int, typing bool)
	HandleMarkRead(ctx context.Context, client *hub.Client, chatID int)
	HandleDisconnect(client *hub.Client)
}
