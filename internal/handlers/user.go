package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-backend/internal/avatar"
	"chat-backend/internal/logging"
	"chat-backend/internal/repositories"
	"chat-backend/internal/storage"
	"chat-backend/internal/telemetry"
)

// UserHandler serves profile endpoints, including avatar upload.
type UserHandler struct {
	users          repositories.UserRepository
	store          storage.Storage
	avatars        *avatar.Processor
	avatarMaxBytes int64
	audit          *telemetry.AuditEmitter
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users repositories.UserRepository, store storage.Storage, avatars *avatar.Processor, avatarMaxBytes int64, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{
		users:          users,
		store:          store,
		avatars:        avatars,
		avatarMaxBytes: avatarMaxBytes,
		audit:          audit,
	}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.GetUserByID(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers returns every other active account, for the member picker.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateProfile handles PUT /api/users/profile. Absent fields keep their
// stored values.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		DisplayName   *string `json:"display_name"`
		Bio           *string `json:"bio"`
		StatusMessage *string `json:"status_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), c.GetInt("userID"), req.DisplayName, req.Bio, req.StatusMessage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	h.emitAudit(c, "INFO", "Profile updated")
	c.JSON(http.StatusOK, user)
}

// UploadAvatar handles POST /api/users/profile/avatar. The image is
// normalized to a square JPEG before it is stored; the previous object is
// removed only after the profile points at the new one.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID := c.GetInt("userID")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be an image"})
		return
	}
	if header.Size > h.avatarMaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File size must be less than 5MB"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	processed, err := h.avatars.Process(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar: " + err.Error()})
		return
	}

	key := fmt.Sprintf("users/%d/%s.jpg", userID, uuid.NewString())
	if err := h.store.Write(c.Request.Context(), key, bytes.NewReader(processed), int64(len(processed)), avatar.ContentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar: " + err.Error()})
		return
	}

	url := h.store.URL(key)
	if err := h.users.UpdateAvatar(c.Request.Context(), userID, &url, &key); err != nil {
		if cleanupErr := h.store.Delete(c.Request.Context(), key); cleanupErr != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(cleanupErr).Str("key", key).Msg("orphaned avatar object after failed profile update")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar: " + err.Error()})
		return
	}

	if user.ProfileImageKey != nil && *user.ProfileImageKey != key {
		if err := h.store.Delete(c.Request.Context(), *user.ProfileImageKey); err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Str("key", *user.ProfileImageKey).Msg("failed to remove previous avatar")
		}
	}

	h.emitAudit(c, "INFO", "Avatar uploaded")
	c.JSON(http.StatusOK, gin.H{
		"message":           "Avatar uploaded successfully",
		"profile_image_url": url,
	})
}

// DeleteAvatar handles DELETE /api/users/profile/avatar.
func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	userID := c.GetInt("userID")

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	if user.ProfileImageKey == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No avatar to delete"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), *user.ProfileImageKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete avatar: " + err.Error()})
		return
	}
	if err := h.users.UpdateAvatar(c.Request.Context(), userID, nil, nil); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete avatar: " + err.Error()})
		return
	}

	h.emitAudit(c, "INFO", "Avatar deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Avatar deleted successfully"})
}

func (h *UserHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
