// Package http provides gin handlers for user registration, lookup, contact updates and login.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/piivault/internal/httputil"
	"github.com/allisson/piivault/internal/user/http/dto"
	"github.com/allisson/piivault/internal/user/usecase"
	customValidation "github.com/allisson/piivault/internal/validation"
)

// UserHandler handles user HTTP requests.
type UserHandler struct {
	userUseCase usecase.UseCase
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(userUseCase usecase.UseCase, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
		logger:      logger,
	}
}

// RegisterRoutes mounts the user routes on a router group (usually /v1).
func (h *UserHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	users := v1.Group("/users")
	{
		users.POST("", h.RegisterHandler)
		users.GET("", h.FindByEmailHandler)
		users.GET("/:id", h.GetHandler)
		users.PATCH("/:id/contact", h.UpdateContactHandler)
	}
	v1.POST("/auth/login", h.LoginHandler)
}

// RegisterHandler creates a user.
// POST /v1/users - Returns 201 Created, 409 when the email, phone or national id is taken.
func (h *UserHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.userUseCase.Register(c.Request.Context(), dto.ToRegisterUserInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserResponse(user))
}

// GetHandler returns a user by id.
// GET /v1/users/:id
func (h *UserHandler) GetHandler(c *gin.Context) {
	user, err := h.userUseCase.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// FindByEmailHandler looks a user up by email.
// GET /v1/users?email=
func (h *UserHandler) FindByEmailHandler(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		httputil.HandleBadRequestGin(c, errors.New("email query parameter is required"), h.logger)
		return
	}

	user, err := h.userUseCase.GetByEmail(c.Request.Context(), email)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// UpdateContactHandler changes contact fields of a user.
// PATCH /v1/users/:id/contact
func (h *UserHandler) UpdateContactHandler(c *gin.Context) {
	var req dto.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.userUseCase.UpdateContact(c.Request.Context(), c.Param("id"), dto.ToUpdateContactInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// LoginHandler checks user credentials.
// POST /v1/auth/login - Returns 401 for unknown emails and wrong passwords alike.
func (h *UserHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	user, err := h.userUseCase.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{UserID: user.ID, Authenticated: true})
}
