package models

import "time"

// Message represents a persisted chat message. Per-chat ordering is the
// store's insertion order (ascending id).
type Message struct {
	ID          int       `db:"id" json:"id"`
	ChatID      int       `db:"chat_id" json:"chat_id"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	Content     string    `db:"content" json:"content"`
	MessageType string    `db:"message_type" json:"message_type"`
	IsDelivered bool      `db:"is_delivered" json:"is_delivered"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	IsFlagged   bool      `db:"is_flagged" json:"is_flagged"`
	FlagReason  *string   `db:"flag_reason" json:"flag_reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
