package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/piivault/internal/user/domain"
	"github.com/allisson/piivault/internal/user/http/dto"
	"github.com/allisson/piivault/internal/user/usecase"
	"github.com/allisson/piivault/internal/user/usecase/mocks"
)

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockUseCase) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockUseCase := &mocks.MockUseCase{}
	t.Cleanup(func() { mockUseCase.AssertExpectations(t) })
	handler := NewUserHandler(mockUseCase, slog.New(slog.NewTextHandler(io.Discard, nil)))

	router := gin.New()
	handler.RegisterRoutes(router.Group("/v1"))
	return router, mockUseCase
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) dto.UserResponse {
	t.Helper()
	var resp dto.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var storedUser = &domain.User{
	ID:             "u1",
	Name:           "Ana",
	Email:          "ana@example.com",
	RecoveryEmails: []string{"b@example.com"},
	Profile:        domain.Profile{NationalID: "123"},
	Password:       "$argon2id$hash",
}

func TestUserHandler_Register(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		router, uc := setupRouter(t)
		req := dto.RegisterUserRequest{Name: "Ana", Email: "ana@example.com", Password: "SecurePass123!"}
		uc.On("Register", mock.Anything, usecase.RegisterUserInput{
			Name:     "Ana",
			Email:    "ana@example.com",
			Password: "SecurePass123!",
		}).Return(storedUser, nil).Once()

		w := doRequest(router, http.MethodPost, "/v1/users", req)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeUser(t, w)
		assert.Equal(t, "u1", resp.ID)
		assert.Equal(t, "123", resp.Profile.NationalID)
		assert.NotContains(t, w.Body.String(), "argon2id")
	})

	t.Run("Conflict", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrUserAlreadyExists).Once()

		w := doRequest(router, http.MethodPost, "/v1/users",
			dto.RegisterUserRequest{Name: "Ana", Email: "ana@example.com", Password: "SecurePass123!"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		router, _ := setupRouter(t)
		w := doRequest(router, http.MethodPost, "/v1/users", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingFields", func(t *testing.T) {
		router, _ := setupRouter(t)
		w := doRequest(router, http.MethodPost, "/v1/users", dto.RegisterUserRequest{Name: "Ana"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestUserHandler_Get(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("GetByID", mock.Anything, "u1").Return(storedUser, nil).Once()

		w := doRequest(router, http.MethodGet, "/v1/users/u1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ana@example.com", decodeUser(t, w).Email)
	})

	t.Run("NotFound", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrUserNotFound).Once()

		w := doRequest(router, http.MethodGet, "/v1/users/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUserHandler_FindByEmail(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("GetByEmail", mock.Anything, " ANA@example.com").Return(storedUser, nil).Once()

		w := doRequest(router, http.MethodGet, "/v1/users?email=%20ANA@example.com", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", decodeUser(t, w).ID)
	})

	t.Run("MissingQuery", func(t *testing.T) {
		router, _ := setupRouter(t)
		w := doRequest(router, http.MethodGet, "/v1/users", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserHandler_UpdateContact(t *testing.T) {
	t.Run("Updated", func(t *testing.T) {
		router, uc := setupRouter(t)
		phone := ""
		uc.On("UpdateContact", mock.Anything, "u1", usecase.UpdateContactInput{Phone: &phone}).
			Return(storedUser, nil).
			Once()

		w := doRequest(router, http.MethodPatch, "/v1/users/u1/contact", `{"phone":""}`)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		router, _ := setupRouter(t)
		w := doRequest(router, http.MethodPatch, "/v1/users/u1/contact", `{}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Conflict", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("UpdateContact", mock.Anything, "u1", mock.Anything).Return(nil, domain.ErrUserAlreadyExists).Once()

		w := doRequest(router, http.MethodPatch, "/v1/users/u1/contact", `{"email":"taken@example.com"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestUserHandler_Login(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("Authenticate", mock.Anything, "ana@example.com", "SecurePass123!").Return(storedUser, nil).Once()

		w := doRequest(router, http.MethodPost, "/v1/auth/login",
			dto.LoginRequest{Email: "ana@example.com", Password: "SecurePass123!"})

		assert.Equal(t, http.StatusOK, w.Code)
		var resp dto.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.LoginResponse{UserID: "u1", Authenticated: true}, resp)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		router, uc := setupRouter(t)
		uc.On("Authenticate", mock.Anything, "ana@example.com", "wrong").
			Return(nil, domain.ErrInvalidCredentials).
			Once()

		w := doRequest(router, http.MethodPost, "/v1/auth/login",
			dto.LoginRequest{Email: "ana@example.com", Password: "wrong"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("MissingPassword", func(t *testing.T) {
		router, _ := setupRouter(t)
		w := doRequest(router, http.MethodPost, "/v1/auth/login", dto.LoginRequest{Email: "ana@example.com"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
