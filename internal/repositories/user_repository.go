package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, username, email, password_hash, display_name, bio, status_message, profile_image_url, profile_image_key, is_active, created_at, last_seen`

// UserRepository abstracts account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, username string, email string, passwordHash string, displayName *string) (models.User, error)
	GetUserByID(ctx context.Context, userID int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context, excludeUserID int) ([]models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []int) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID int, displayName *string, bio *string, statusMessage *string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID int, imageURL *string, imageKey *string) error
	TouchLastSeen(ctx context.Context, userID int) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new account row.
func (r *UserRepo) CreateUser(ctx context.Context, username string, email string, passwordHash string, displayName *string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `INSERT INTO users (username, email, password_hash, display_name) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		username, email, passwordHash, displayName).StructScan(&user)
	return user, err
}

// GetUserByID fetches a user by primary key.
func (r *UserRepo) GetUserByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches a user by email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches a user by username.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns all active users except the given one.
func (r *UserRepo) ListUsers(ctx context.Context, excludeUserID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id<>$1 AND is_active = TRUE ORDER BY username ASC`, excludeUserID)
	return users, err
}

// GetUsersByIDs fetches a batch of users.
func (r *UserRepo) GetUsersByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// UpdateProfile updates the provided fields, keeping the rest.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID int, displayName *string, bio *string, statusMessage *string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx, `UPDATE users SET
            display_name = COALESCE($2, display_name),
            bio = COALESCE($3, bio),
            status_message = COALESCE($4, status_message)
        WHERE id=$1 RETURNING `+userColumns,
		userID, displayName, bio, statusMessage).StructScan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateAvatar swaps the stored avatar reference. Nil values clear it.
func (r *UserRepo) UpdateAvatar(ctx context.Context, userID int, imageURL *string, imageKey *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile_image_url=$2, profile_image_key=$3 WHERE id=$1`, userID, imageURL, imageKey)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchLastSeen stamps the user's last activity time.
func (r *UserRepo) TouchLastSeen(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = NOW() WHERE id=$1`, userID)
	return err
}
