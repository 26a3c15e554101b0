package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/chats", handler.CreateChat)
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	return r
}

func TestCreateDirectChat(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chats, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chats.On("CreateChat", mock.Anything, (*string)(nil), false, 1, []int{1, 2}).
		Return(models.Chat{ID: 10, CreatedBy: 1}, nil).Once()
	chats.On("Participants", mock.Anything, 10).
		Return([]models.User{{ID: 1, Username: "maya"}, {ID: 2, Username: "leo"}}, nil).Once()

	body := bytes.NewBufferString(`{"is_group":false,"participant_ids":[2]}`)
	req := httptest.NewRequest(http.MethodPost, "/chats", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.ChatSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.ID)
	assert.Len(t, resp.Participants, 2)
	assert.Nil(t, resp.LastMessage)
	chats.AssertExpectations(t)
}

func TestCreateDirectChatNeedsExactlyTwoMembers(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chats, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	body := bytes.NewBufferString(`{"is_group":false,"participant_ids":[2,3]}`)
	req := httptest.NewRequest(http.MethodPost, "/chats", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	chats.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupChatDedupesMembers(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chats, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chats.On("CreateChat", mock.Anything, strPtr("team"), true, 1, []int{1, 2, 3}).
		Return(models.Chat{ID: 11, IsGroup: true, CreatedBy: 1}, nil).Once()
	chats.On("Participants", mock.Anything, 11).
		Return([]models.User{{ID: 1}, {ID: 2}, {ID: 3}}, nil).Once()

	body := bytes.NewBufferString(`{"name":"team","is_group":true,"participant_ids":[2,3,2,1]}`)
	req := httptest.NewRequest(http.MethodPost, "/chats", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chats.AssertExpectations(t)
}

func TestListChatsIncludesLastMessage(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chats, messages, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chats.On("ListChatsForUser", mock.Anything, 1).
		Return([]models.Chat{{ID: 3, CreatedBy: 1}, {ID: 4, CreatedBy: 2}}, nil).Once()
	chats.On("Participants", mock.Anything, 3).
		Return([]models.User{{ID: 1, Username: "maya"}, {ID: 2, Username: "leo"}}, nil).Once()
	chats.On("Participants", mock.Anything, 4).
		Return([]models.User{{ID: 1, Username: "maya"}, {ID: 5, Username: "nia"}}, nil).Once()
	messages.On("LastMessage", mock.Anything, 3).
		Return(models.Message{ID: 9, ChatID: 3, SenderID: 2, Content: "see you there"}, nil).Once()
	messages.On("LastMessage", mock.Anything, 4).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 2)
	require.NotNil(t, resp.Chats[0].LastMessage)
	assert.Equal(t, 9, resp.Chats[0].LastMessage.ID)
	assert.Nil(t, resp.Chats[1].LastMessage)

	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestGetChatMessagesDeniedForNonParticipant(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chats, messages, new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	chats.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Access denied to this chat", resp["error"])
	messages.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesHydratesSenders(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chats, messages, users)
	router := setupChatRouter(handler)

	chats.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("ListMessages", mock.Anything, 5, 50, 0).Return([]models.Message{
		{ID: 1, ChatID: 5, SenderID: 1, Content: "hi"},
		{ID: 2, ChatID: 5, SenderID: 2, Content: "hey"},
		{ID: 3, ChatID: 5, SenderID: 1, Content: "lunch?"},
	}, nil).Once()
	users.On("GetUsersByIDs", mock.Anything, []int{1, 2}).Return([]models.User{
		{ID: 1, Username: "maya", Email: "maya@example.com"},
		{ID: 2, Username: "leo", Email: "leo@example.com"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
			Sender  struct {
				ID       int    `json:"id"`
				Username string `json:"username"`
			} `json:"sender"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "maya", resp.Messages[0].Sender.Username)
	assert.Equal(t, "leo", resp.Messages[1].Sender.Username)

	chats.AssertExpectations(t)
	messages.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestGetChatMessagesHonorsPaging(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	handler := NewChatHandler(chats, messages, users)
	router := setupChatRouter(handler)

	chats.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	messages.On("ListMessages", mock.Anything, 5, 2, 4).Return([]models.Message{}, nil).Once()
	users.On("GetUsersByIDs", mock.Anything, []int{}).Return([]models.User{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages?limit=2&offset=4", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock))
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
