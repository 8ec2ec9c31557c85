package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/studyloop-backend/internal/middleware"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/services"
)

type ProgressHandler struct {
	log      *logger.Logger
	studySvc services.StudyService
}

func NewProgressHandler(log *logger.Logger, studySvc services.StudyService) *ProgressHandler {
	return &ProgressHandler{
		log:      log.With("handler", "ProgressHandler"),
		studySvc: studySvc,
	}
}

// GET /api/progress
func (h *ProgressHandler) Overall(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	progress, err := h.studySvc.Progress(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Progress lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load progress"))
		return
	}
	RespondOK(c, progress)
}

// GET /api/progress/topics
func (h *ProgressHandler) Topics(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	topics, err := h.studySvc.TopicProgress(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Topic progress lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load topics"))
		return
	}
	RespondOK(c, gin.H{"topics": topics})
}

// GET /api/reviews
func (h *ProgressHandler) Reviews(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	queue, err := h.studySvc.ReviewQueue(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Review queue lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load reviews"))
		return
	}
	RespondOK(c, gin.H{"reviews": queue})
}
