package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/avatar"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
)

func strPtr(s string) *string {
	return &s
}

func setupUserRouter(handler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/users/me", handler.Me)
	r.GET("/users", handler.ListUsers)
	r.PUT("/users/profile", handler.UpdateProfile)
	r.POST("/users/profile/avatar", handler.UploadAvatar)
	r.DELETE("/users/profile/avatar", handler.DeleteAvatar)
	return r
}

func multipartUpload(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.RGBA{R: uint8(20 * x), G: uint8(25 * y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMeReturnsProfile(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(NewUserHandler(users, nil, nil, 5<<20, nil))

	users.On("GetUserByID", mock.Anything, 1).
		Return(models.User{ID: 1, Username: "maya", Email: "maya@example.com"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "maya", resp.Username)
	users.AssertExpectations(t)
}

func TestListUsersExcludesCaller(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(NewUserHandler(users, nil, nil, 5<<20, nil))

	users.On("ListUsers", mock.Anything, 1).
		Return([]models.User{{ID: 2, Username: "leo"}, {ID: 3, Username: "nia"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Users, 2)
	users.AssertExpectations(t)
}

func TestUpdateProfilePartial(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	router := setupUserRouter(NewUserHandler(users, nil, nil, 5<<20, nil))

	users.On("UpdateProfile", mock.Anything, 1, strPtr("Maya L"), (*string)(nil), (*string)(nil)).
		Return(models.User{ID: 1, Username: "maya", DisplayName: strPtr("Maya L")}, nil).Once()

	body := bytes.NewBufferString(`{"display_name":"Maya L"}`)
	req := httptest.NewRequest(http.MethodPut, "/users/profile", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.DisplayName)
	assert.Equal(t, "Maya L", *resp.DisplayName)
	users.AssertExpectations(t)
}

func TestUploadAvatarSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, avatar.NewProcessor(8), 5<<20, nil))

	users.On("GetUserByID", mock.Anything, 1).
		Return(models.User{ID: 1, Username: "maya", ProfileImageKey: strPtr("users/1/old.jpg")}, nil).Once()
	store.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "image/jpeg").Return(nil).Once()
	store.On("URL", mock.Anything).Return("https://cdn.example.com/users/1/new.jpg").Once()
	users.On("UpdateAvatar", mock.Anything, 1, mock.Anything, mock.Anything).Return(nil).Once()
	store.On("Delete", mock.Anything, "users/1/old.jpg").Return(nil).Once()

	body, contentType := multipartUpload(t, "image/png", smallPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/users/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Avatar uploaded successfully", resp["message"])
	assert.Equal(t, "https://cdn.example.com/users/1/new.jpg", resp["profile_image_url"])

	users.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestUploadAvatarRejectsNonImage(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, avatar.NewProcessor(8), 5<<20, nil))

	body, contentType := multipartUpload(t, "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/users/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "File must be an image", resp["error"])
	store.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadAvatarRejectsOversizedFile(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, avatar.NewProcessor(8), 16, nil))

	body, contentType := multipartUpload(t, "image/png", smallPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/users/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "File size must be less than 5MB", resp["error"])
}

func TestUploadAvatarRejectsCorruptImage(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, avatar.NewProcessor(8), 5<<20, nil))

	users.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()

	body, contentType := multipartUpload(t, "image/png", []byte("not really a png"))
	req := httptest.NewRequest(http.MethodPost, "/users/profile/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp["error"], "Failed to upload avatar:")
	users.AssertNotCalled(t, "UpdateAvatar", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAvatarWithoutAvatar(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, nil, 5<<20, nil))

	users.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/users/profile/avatar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "No avatar to delete", resp["error"])
}

func TestDeleteAvatarSuccess(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	store := new(mocks.StorageMock)
	router := setupUserRouter(NewUserHandler(users, store, nil, 5<<20, nil))

	users.On("GetUserByID", mock.Anything, 1).
		Return(models.User{ID: 1, ProfileImageKey: strPtr("users/1/old.jpg")}, nil).Once()
	store.On("Delete", mock.Anything, "users/1/old.jpg").Return(nil).Once()
	users.On("UpdateAvatar", mock.Anything, 1, (*string)(nil), (*string)(nil)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/users/profile/avatar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Avatar deleted successfully", resp["message"])

	users.AssertExpectations(t)
	store.AssertExpectations(t)
}
