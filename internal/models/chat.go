package models

import "time"

// Chat represents a conversation. Direct chats have a null name and exactly
// two participants; group chats carry a name and any number of members.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name,omitempty"`
	IsGroup   bool      `db:"is_group" json:"is_group"`
	CreatedBy int       `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatParticipant is a membership row.
type ChatParticipant struct {
	ChatID   int       `db:"chat_id" json:"chat_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	IsAdmin  bool      `db:"is_admin" json:"is_admin"`
}

// ChatSummary is the API view of a chat for one caller.
type ChatSummary struct {
	Chat
	Participants []User   `json:"participants"`
	LastMessage  *Message `json:"last_message,omitempty"`
}
