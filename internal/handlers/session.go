package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/studyloop-backend/internal/middleware"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/services"
)

type SessionHandler struct {
	log      *logger.Logger
	studySvc services.StudyService
}

func NewSessionHandler(log *logger.Logger, studySvc services.StudyService) *SessionHandler {
	return &SessionHandler{
		log:      log.With("handler", "SessionHandler"),
		studySvc: studySvc,
	}
}

// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	var input services.CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	created, err := h.studySvc.CreateSession(c.Request.Context(), userID, input)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			RespondError(c, http.StatusBadRequest, "validation_failed", err)
			return
		}
		h.log.Error("Session create failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not create session"))
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/sessions/current
func (h *SessionHandler) Current(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	session, err := h.studySvc.CurrentSession(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Current session lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load session"))
		return
	}
	RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/complete
//
// Completing an unknown or already-completed session is a no-op, not an
// error: completion must be safely retryable.
func (h *SessionHandler) Complete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	if err := h.studySvc.CompleteSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.log.Error("Session complete failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not complete session"))
		return
	}
	RespondOK(c, gin.H{"completed": true})
}

// POST /api/sessions/:id/chat
func (h *SessionHandler) Chat(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	var input struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	reply, err := h.studySvc.Chat(c.Request.Context(), userID, c.Param("id"), input.Message)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			RespondError(c, http.StatusBadRequest, "validation_failed", err)
			return
		}
		h.log.Error("Chat turn failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not process message"))
		return
	}
	RespondOK(c, gin.H{"reply": reply})
}

// GET /api/sessions/:id/chat
func (h *SessionHandler) ChatHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	history, err := h.studySvc.ChatHistory(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.log.Error("Chat history lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load history"))
		return
	}
	RespondOK(c, gin.H{"messages": history})
}
