package models

import "time"

// User represents a registered account.
type User struct {
	ID              int        `db:"id" json:"id"`
	Username        string     `db:"username" json:"username"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	DisplayName     *string    `db:"display_name" json:"display_name,omitempty"`
	Bio             *string    `db:"bio" json:"bio,omitempty"`
	StatusMessage   *string    `db:"status_message" json:"status_message,omitempty"`
	ProfileImageURL *string    `db:"profile_image_url" json:"profile_image_url,omitempty"`
	ProfileImageKey *string    `db:"profile_image_key" json:"-"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	LastSeen        *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}
