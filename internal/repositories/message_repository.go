package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, sender_id, content, message_type, is_delivered, is_read, is_flagged, flag_reason, created_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error)
	ListMessages(ctx context.Context, chatID int, limit int, offset int) ([]models.Message, error)
	LastMessage(ctx context.Context, chatID int) (models.Message, error)
	MarkMessagesRead(ctx context.Context, chatID int, readerID int) ([]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message; delivery is flagged at write time since the
// broadcast follows immediately.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content, is_delivered) VALUES ($1, $2, $3, TRUE) RETURNING `+messageColumns,
		chatID, senderID, content).StructScan(&msg)
	return msg, err
}

// ListMessages returns the latest window of a chat's history in ascending
// order: the newest `limit` rows after skipping `offset`, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, limit int, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// LastMessage returns the newest message of a chat.
func (r *MessageRepo) LastMessage(ctx context.Context, chatID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkMessagesRead flips every unread message in the chat that the reader did
// not send, returning the affected ids.
func (r *MessageRepo) MarkMessagesRead(ctx context.Context, chatID int, readerID int) ([]int, error) {
	var ids pq.Int64Array
	err := r.db.GetContext(ctx, &ids, `WITH updated AS (
            UPDATE messages SET is_read = TRUE
            WHERE chat_id=$1 AND sender_id<>$2 AND is_read = FALSE
            RETURNING id
        ) SELECT COALESCE(ARRAY_AGG(id ORDER BY id), '{}') FROM updated`, chatID, readerID)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}
