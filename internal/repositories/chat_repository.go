package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, name *string, isGroup bool, createdBy int, participantIDs []int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.Chat, error)
	Participants(ctx context.Context, chatID int) ([]models.User, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat inserts the chat and its membership rows in one transaction.
// The creator must be present in participantIDs and becomes the admin.
func (r *ChatRepo) CreateChat(ctx context.Context, name *string, isGroup bool, createdBy int, participantIDs []int) (models.Chat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	var chat models.Chat
	if err := tx.QueryRowxContext(ctx, `INSERT INTO chats (name, is_group, created_by) VALUES ($1, $2, $3) RETURNING id, name, is_group, created_by, created_at`,
		name, isGroup, createdBy).StructScan(&chat); err != nil {
		return models.Chat{}, err
	}

	seen := make(map[int]bool, len(participantIDs))
	for _, userID := range participantIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_participants (chat_id, user_id, is_admin) VALUES ($1, $2, $3)`,
			chat.ID, userID, userID == createdBy); err != nil {
			return models.Chat{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, name, is_group, created_by, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns the chats the user participates in, newest first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, `SELECT c.id, c.name, c.is_group, c.created_by, c.created_at
        FROM chats c
        JOIN chat_participants cp ON cp.chat_id = c.id
        WHERE cp.user_id=$1
        ORDER BY c.created_at DESC`, userID)
	return chats, err
}

// Participants returns the member users of a chat in join order.
func (r *ChatRepo) Participants(ctx context.Context, chatID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT u.id, u.username, u.email, u.password_hash, u.display_name, u.bio, u.status_message, u.profile_image_url, u.profile_image_key, u.is_active, u.created_at, u.last_seen
        FROM users u
        JOIN chat_participants cp ON cp.user_id = u.id
        WHERE cp.chat_id=$1
        ORDER BY cp.joined_at ASC`, chatID)
	return users, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}
