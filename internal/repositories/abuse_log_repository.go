package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

// AbuseLogRepository records moderation verdicts for flagged content.
type AbuseLogRepository interface {
	InsertAbuseLog(ctx context.Context, entry models.AbuseLog) error
}

// AbuseLogRepo is a sqlx implementation of AbuseLogRepository.
type AbuseLogRepo struct {
	db *sqlx.DB
}

// NewAbuseLogRepo constructs an AbuseLogRepo.
func NewAbuseLogRepo(db *sqlx.DB) *AbuseLogRepo {
	return &AbuseLogRepo{db: db}
}

// InsertAbuseLog appends one detection record.
func (r *AbuseLogRepo) InsertAbuseLog(ctx context.Context, entry models.AbuseLog) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO abuse_logs (user_id, message_content, detection_result, confidence_score, flagged_categories, flagged_words, detection_method)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.UserID, entry.MessageContent, entry.DetectionResult, entry.ConfidenceScore, entry.FlaggedCategories, entry.FlaggedWords, entry.DetectionMethod)
	return err
}
