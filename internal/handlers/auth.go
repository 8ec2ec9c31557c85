package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/services"
)

type AuthHandler struct {
	log     *logger.Logger
	authSvc services.AuthService
}

func NewAuthHandler(log *logger.Logger, authSvc services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:     log.With("handler", "AuthHandler"),
		authSvc: authSvc,
	}
}

// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	u, token, err := h.authSvc.RegisterUser(c.Request.Context(), input)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			RespondError(c, http.StatusBadRequest, "validation_failed", err)
		case errors.Is(err, services.ErrEmailTaken):
			RespondError(c, http.StatusConflict, "email_taken", err)
		default:
			h.log.Error("Registration failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "internal", errors.New("registration failed"))
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": u})
}

// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	u, token, err := h.authSvc.LoginUser(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
			return
		}
		h.log.Error("Login failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("login failed"))
		return
	}
	RespondOK(c, gin.H{"token": token, "user": u})
}
