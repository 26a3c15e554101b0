package models

import "time"

// AbuseLog is the audit row written when the moderation gate flags content.
type AbuseLog struct {
	ID                int       `db:"id" json:"id"`
	UserID            int       `db:"user_id" json:"user_id"`
	MessageContent    string    `db:"message_content" json:"message_content"`
	DetectionResult   bool      `db:"detection_result" json:"detection_result"`
	ConfidenceScore   float64   `db:"confidence_score" json:"confidence_score"`
	FlaggedCategories string    `db:"flagged_categories" json:"flagged_categories"`
	FlaggedWords      string    `db:"flagged_words" json:"flagged_words"`
	DetectionMethod   string    `db:"detection_method" json:"detection_method"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
