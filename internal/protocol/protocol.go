// Package protocol defines the JSON messages exchanged over the chat
// websocket. Client frames carry a type discriminator plus the fields for
// that type; server frames are built through the New* constructors so every
// event leaves the process with a consistent shape.
package protocol

import "time"

// Client to server message types.
const (
	TypeAuthenticate     = "authenticate"
	TypeJoinChat         = "join_chat"
	TypeLeaveChat        = "leave_chat"
	TypeSendMessage      = "send_message"
	TypeTypingStart      = "typing_start"
	TypeTypingStop       = "typing_stop"
	TypeMarkMessagesRead = "mark_messages_read"
)

// Server to client message types.
const (
	TypeAuthenticated  = "authenticated"
	TypeAuthError      = "auth_error"
	TypeUserOnline     = "user_online"
	TypeUserOffline    = "user_offline"
	TypeNewMessage     = "new_message"
	TypeMessageSent    = "message_sent"
	TypeMessageBlocked = "message_blocked"
	TypeError          = "error"
	TypeUserTyping     = "user_typing"
	TypeMessagesRead   = "messages_read"
)

// ClientMessage is the inbound frame. Only the fields relevant to Type are
// populated; the rest stay at their zero values.
type ClientMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	ChatID  int    `json:"chat_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// Sender identifies the author of a broadcast message.
type Sender struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthenticatedMessage confirms a successful session bind.
type AuthenticatedMessage struct {
	Type     string `json:"type"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

func NewAuthenticatedMessage(userID int, username string) AuthenticatedMessage {
	return AuthenticatedMessage{Type: TypeAuthenticated, UserID: userID, Username: username}
}

// AuthErrorMessage reports a failed authenticate attempt.
type AuthErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewAuthErrorMessage(message string) AuthErrorMessage {
	return AuthErrorMessage{Type: TypeAuthError, Message: message}
}

// UserOnlineMessage announces that a user has at least one live session.
type UserOnlineMessage struct {
	Type     string `json:"type"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

func NewUserOnlineMessage(userID int, username string) UserOnlineMessage {
	return UserOnlineMessage{Type: TypeUserOnline, UserID: userID, Username: username}
}

// UserOfflineMessage announces that a user's last session closed.
type UserOfflineMessage struct {
	Type   string `json:"type"`
	UserID int    `json:"user_id"`
}

func NewUserOfflineMessage(userID int) UserOfflineMessage {
	return UserOfflineMessage{Type: TypeUserOffline, UserID: userID}
}

// NewMessageEvent carries a persisted message to chat subscribers.
type NewMessageEvent struct {
	Type        string    `json:"type"`
	ID          int       `json:"id"`
	ChatID      int       `json:"chat_id"`
	Content     string    `json:"content"`
	Sender      Sender    `json:"sender"`
	CreatedAt   time.Time `json:"created_at"`
	IsDelivered bool      `json:"is_delivered"`
	IsRead      bool      `json:"is_read"`
}

func NewMessageBroadcast(id, chatID int, content string, sender Sender, createdAt time.Time, delivered, read bool) NewMessageEvent {
	return NewMessageEvent{
		Type:        TypeNewMessage,
		ID:          id,
		ChatID:      chatID,
		Content:     content,
		Sender:      sender,
		CreatedAt:   createdAt,
		IsDelivered: delivered,
		IsRead:      read,
	}
}

// MessageSentMessage acknowledges a send back to its author.
type MessageSentMessage struct {
	Type      string `json:"type"`
	MessageID int    `json:"message_id"`
	Status    string `json:"status"`
}

func NewMessageSentMessage(messageID int) MessageSentMessage {
	return MessageSentMessage{Type: TypeMessageSent, MessageID: messageID, Status: "delivered"}
}

// MessageBlockedMessage tells the author their content was rejected. The
// flagged terms go back to the author only, never to the room.
type MessageBlockedMessage struct {
	Type           string   `json:"type"`
	Reason         string   `json:"reason"`
	BlockedContent []string `json:"blocked_content"`
	ChatID         int      `json:"chat_id"`
}

func NewMessageBlockedMessage(reason string, flaggedTerms []string, chatID int) MessageBlockedMessage {
	if flaggedTerms == nil {
		flaggedTerms = []string{}
	}
	return MessageBlockedMessage{Type: TypeMessageBlocked, Reason: reason, BlockedContent: flaggedTerms, ChatID: chatID}
}

// ErrorMessage reports a non-auth failure to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// UserTypingMessage relays a typing indicator to other chat members.
type UserTypingMessage struct {
	Type   string `json:"type"`
	ChatID int    `json:"chat_id"`
	UserID int    `json:"user_id"`
	Typing bool   `json:"typing"`
}

func NewUserTypingMessage(chatID, userID int, typing bool) UserTypingMessage {
	return UserTypingMessage{Type: TypeUserTyping, ChatID: chatID, UserID: userID, Typing: typing}
}

// MessagesReadMessage announces which messages a reader caught up on.
type MessagesReadMessage struct {
	Type       string `json:"type"`
	ChatID     int    `json:"chat_id"`
	ReaderID   int    `json:"reader_id"`
	MessageIDs []int  `json:"message_ids"`
}

func NewMessagesReadMessage(chatID, readerID int, messageIDs []int) MessagesReadMessage {
	if messageIDs == nil {
		messageIDs = []int{}
	}
	return MessagesReadMessage{Type: TypeMessagesRead, ChatID: chatID, ReaderID: readerID, MessageIDs: messageIDs}
}
