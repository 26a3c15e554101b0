package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// ChatHandler serves chat and message history endpoints.
type ChatHandler struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats repositories.ChatRepository, messages repositories.MessageRepository, users repositories.UserRepository) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, users: users}
}

// CreateChat handles POST /api/chats. The creator is always a participant;
// direct chats hold exactly two members.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		Name           *string `json:"name"`
		IsGroup        bool    `json:"is_group"`
		ParticipantIDs []int   `json:"participant_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")

	seen := map[int]bool{userID: true}
	members := []int{userID}
	for _, id := range req.ParticipantIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	if !req.IsGroup && len(members) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direct chats need exactly two participants"})
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), req.Name, req.IsGroup, userID, members)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	participants, err := h.chats.Participants(c.Request.Context(), chat.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	c.JSON(http.StatusCreated, models.ChatSummary{Chat: chat, Participants: participants})
}

// ListChats returns the caller's chats with participants and last message.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt("userID")

	chats, err := h.chats.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		participants, err := h.chats.Participants(c.Request.Context(), chat.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
			return
		}

		summary := models.ChatSummary{Chat: chat, Participants: participants}
		last, err := h.messages.LastMessage(c.Request.Context(), chat.ID)
		if err == nil {
			summary.LastMessage = &last
		} else if !errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"chats": summaries})
}

// GetChatMessages returns a page of chat history, oldest first, for
// participants only.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.chats.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this chat"})
		return
	}

	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	msgs, err := h.messages.ListMessages(c.Request.Context(), chatID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	senders, err := h.users.GetUsersByIDs(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	senderByID := make(map[int]models.User, len(senders))
	for _, u := range senders {
		senderByID[u.ID] = u
	}

	type senderResponse struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	type messageResponse struct {
		models.Message
		Sender senderResponse `json:"sender"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		sender := senderByID[m.SenderID]
		resp = append(resp, messageResponse{
			Message: m,
			Sender:  senderResponse{ID: sender.ID, Username: sender.Username, Email: sender.Email},
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

func intQuery(c *gin.Context, name string, def int) int {
	value, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || value < 0 {
		return def
	}
	return value
}
