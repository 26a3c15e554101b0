package service

import (
	"context"
	"errors"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/hub"
	"chat-backend/internal/logging"
	"chat-backend/internal/moderation"
	"chat-backend/internal/observability"
	"chat-backend/internal/protocol"
	"chat-backend/internal/registry"
	"chat-backend/internal/repositories"
)

// Client-visible failure strings. Frontends match on these exactly.
const (
	msgNotAuthenticated  = "Not authenticated"
	msgMissingChatOrBody = "Chat ID and content required"
	msgAccessDenied      = "Access denied to this chat"
	msgSendFailed        = "Failed to send message"

	msgTokenRequired = "Token required"
	msgInvalidUser   = "Invalid user"
	msgAuthFailed    = "Authentication failed"

	blockReason = "Message contains offensive content"
)

// Send pipeline outcomes, used as the metric label.
const (
	resultRejected  = "rejected"
	resultBlocked   = "blocked"
	resultFailed    = "failed"
	resultDelivered = "delivered"
)

type chatService struct {
	registry *registry.Registry
	hub      Hub
	users    repositories.UserRepository
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	gate     *moderation.Gate

	locks        *chatLocks
	storeTimeout time.Duration
}

// NewChatService wires the realtime operations over the registry, hub, stores
// and moderation gate. storeTimeout bounds every store call made on behalf of
// a websocket event.
func NewChatService(
	reg *registry.Registry,
	h Hub,
	users repositories.UserRepository,
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	gate *moderation.Gate,
	storeTimeout time.Duration,
) ChatService {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &chatService{
		registry:     reg,
		hub:          h,
		users:        users,
		chats:        chats,
		messages:     messages,
		gate:         gate,
		locks:        newChatLocks(),
		storeTimeout: storeTimeout,
	}
}

func (s *chatService) HandleAuthenticate(ctx context.Context, client *hub.Client, token string) {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	user, first, err := s.registry.Authenticate(cctx, client.ID, token)
	if err != nil {
		logging.L().Warn().Err(err).Str(logging.FieldSessionID, client.ID).Msg("authentication failed")
		s.hub.SendToSession(client.ID, protocol.NewAuthErrorMessage(authFailureMessage(err)))
		return
	}

	logging.L().Info().
		Str(logging.FieldSessionID, client.ID).
		Int(logging.FieldUserID, user.ID).
		Bool("first_session", first).
		Msg("session authenticated")

	s.hub.SendToSession(client.ID, protocol.NewAuthenticatedMessage(user.ID, user.Username))
	s.hub.BroadcastAll(protocol.NewUserOnlineMessage(user.ID, user.Username), client.ID)

	if err := s.users.TouchLastSeen(cctx, user.ID); err != nil {
		logging.L().Warn().Err(err).Int(logging.FieldUserID, user.ID).Msg("touch last seen")
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, registry.ErrTokenRequired):
		return msgTokenRequired
	case errors.Is(err, auth.ErrUnknownUser):
		return msgInvalidUser
	default:
		return msgAuthFailed
	}
}

func (s *chatService) HandleJoinChat(_ context.Context, client *hub.Client, chatID int) {
	userID, ok := s.registry.UserID(client.ID)
	if !ok {
		s.hub.SendToSession(client.ID, protocol.NewErrorMessage(msgNotAuthenticated))
		return
	}
	if chatID <= 0 {
		return
	}

	// Membership is permissive: any authenticated session may subscribe.
	// Message sends still enforce participation.
	s.hub.Join(chatID, client)
	logging.L().Debug().
		Str(logging.FieldSessionID, client.ID).
		Int(logging.FieldUserID, userID).
		Int(logging.FieldChatID, chatID).
		Msg("joined chat room")
}

func (s *chatService) HandleLeaveChat(_ context.Context, client *hub.Client, chatID int) {
	if chatID <= 0 {
		return
	}
	s.hub.Leave(chatID, client)
	logging.L().Debug().
		Str(logging.FieldSessionID, client.ID).
		Int(logging.FieldChatID, chatID).
		Msg("left chat room")
}

// HandleSendMessage runs the full send pipeline: authorization, moderation,
// persistence, room broadcast, sender acknowledgment. Any early exit replies
// to the sender only.
func (s *chatService) HandleSendMessage(ctx context.Context, client *hub.Client, chatID int, content string) {
	userID, ok := s.registry.UserID(client.ID)
	if !ok {
		s.reject(client, msgNotAuthenticated)
		return
	}
	if chatID <= 0 || content == "" {
		s.reject(client, msgMissingChatOrBody)
		return
	}

	authCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	participant, err := s.chats.IsParticipant(authCtx, chatID, userID)
	cancel()
	if err != nil {
		logging.L().Error().Err(err).
			Int(logging.FieldUserID, userID).
			Int(logging.FieldChatID, chatID).
			Msg("participant check failed")
		s.fail(client)
		return
	}
	if !participant {
		s.reject(client, msgAccessDenied)
		return
	}

	verdict := s.gate.Check(ctx, content, userID)
	if verdict.Abusive {
		s.hub.SendToSession(client.ID, protocol.NewMessageBlockedMessage(blockReason, verdict.FlaggedTerms, chatID))
		observability.IncPipelineResult(resultBlocked)

		event := observability.NewEvent("message_blocked")
		event.SessionID = client.ID
		event.UserID = &userID
		event.Payload = map[string]any{
			"chat_id":       chatID,
			"flagged_terms": verdict.FlaggedTerms,
			"method":        verdict.Method,
		}
		observability.PublishEvent(ctx, "messages.blocked", event)
		return
	}

	// Persist and broadcast under the chat lock so room delivery order
	// matches message ids.
	release := s.locks.acquire(chatID)
	defer release()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	sender, err := s.users.GetUserByID(storeCtx, userID)
	if err != nil {
		logging.L().Error().Err(err).Int(logging.FieldUserID, userID).Msg("load sender failed")
		s.fail(client)
		return
	}

	msg, err := s.messages.CreateMessage(storeCtx, chatID, userID, content)
	if err != nil {
		logging.L().Error().Err(err).
			Int(logging.FieldUserID, userID).
			Int(logging.FieldChatID, chatID).
			Msg("persist message failed")
		s.fail(client)
		return
	}

	broadcast := protocol.NewMessageBroadcast(
		msg.ID,
		msg.ChatID,
		msg.Content,
		protocol.Sender{ID: sender.ID, Username: sender.Username, Email: sender.Email},
		msg.CreatedAt,
		msg.IsDelivered,
		msg.IsRead,
	)
	s.hub.BroadcastToChat(chatID, broadcast, "")
	s.hub.SendToSession(client.ID, protocol.NewMessageSentMessage(msg.ID))
	observability.IncPipelineResult(resultDelivered)

	event := observability.NewEvent("message_persisted")
	event.SessionID = client.ID
	event.UserID = &userID
	event.Payload = map[string]any{"message_id": msg.ID, "chat_id": chatID}
	observability.PublishEvent(ctx, "messages.persisted", event)
}

func (s *chatService) HandleTyping(_ context.Context, client *hub.Client, chatID int, typing bool) {
	userID, ok := s.registry.UserID(client.ID)
	if !ok {
		return
	}
	if chatID <= 0 {
		return
	}
	s.hub.BroadcastToChat(chatID, protocol.NewUserTypingMessage(chatID, userID, typing), client.ID)
}

func (s *chatService) HandleMarkRead(ctx context.Context, client *hub.Client, chatID int) {
	userID, ok := s.registry.UserID(client.ID)
	if !ok {
		return
	}
	if chatID <= 0 {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ids, err := s.messages.MarkMessagesRead(cctx, chatID, userID)
	if err != nil {
		logging.L().Error().Err(err).
			Int(logging.FieldUserID, userID).
			Int(logging.FieldChatID, chatID).
			Msg("mark messages read failed")
		return
	}
	if len(ids) == 0 {
		return
	}
	s.hub.BroadcastToChat(chatID, protocol.NewMessagesReadMessage(chatID, userID, ids), client.ID)
}

// HandleDisconnect tears a session down: room subscriptions go first, then
// the registry binding. The offline broadcast fires only when the user's last
// session closed.
func (s *chatService) HandleDisconnect(client *hub.Client) {
	s.hub.Unregister(client)

	userID, last, ok := s.registry.Disconnect(client.ID)
	if !ok {
		return
	}

	logging.L().Info().
		Str(logging.FieldSessionID, client.ID).
		Int(logging.FieldUserID, userID).
		Bool("last_session", last).
		Msg("session disconnected")

	if !last {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()
	if err := s.users.TouchLastSeen(ctx, userID); err != nil {
		logging.L().Warn().Err(err).Int(logging.FieldUserID, userID).Msg("touch last seen")
	}
	s.hub.BroadcastAll(protocol.NewUserOfflineMessage(userID), "")
}

func (s *chatService) reject(client *hub.Client, message string) {
	s.hub.SendToSession(client.ID, protocol.NewErrorMessage(message))
	observability.IncPipelineResult(resultRejected)
}

func (s *chatService) fail(client *hub.Client) {
	s.hub.SendToSession(client.ID, protocol.NewErrorMessage(msgSendFailed))
	observability.IncPipelineResult(resultFailed)
}
