package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/studyloop-backend/internal/middleware"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/services"
	"github.com/studyloop/studyloop-backend/internal/store"
)

type QuizHandler struct {
	log      *logger.Logger
	studySvc services.StudyService
}

func NewQuizHandler(log *logger.Logger, studySvc services.StudyService) *QuizHandler {
	return &QuizHandler{
		log:      log.With("handler", "QuizHandler"),
		studySvc: studySvc,
	}
}

// POST /api/quizzes/generate
func (h *QuizHandler) Generate(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	var input services.GenerateQuizInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.studySvc.GenerateQuiz(c.Request.Context(), userID, input)
	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			RespondError(c, http.StatusBadRequest, "validation_failed", err)
		case errors.Is(err, services.ErrWorkflowsDisabled):
			RespondError(c, http.StatusServiceUnavailable, "workflows_disabled", err)
		default:
			h.log.Error("Quiz generation failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not generate quiz"))
		}
		return
	}
	RespondOK(c, result)
}

// POST /api/quizzes/:id/submit
func (h *QuizHandler) Submit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	var input struct {
		Answers map[string]string `json:"answers"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.studySvc.SubmitQuiz(c.Request.Context(), userID, c.Param("id"), input.Answers)
	if err != nil {
		if errors.Is(err, store.ErrQuizNotFound) {
			RespondError(c, http.StatusNotFound, "quiz_not_found", err)
			return
		}
		h.log.Error("Quiz submit failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not submit quiz"))
		return
	}
	RespondOK(c, result)
}

// GET /api/quizzes/results
func (h *QuizHandler) Results(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user"))
		return
	}
	results, err := h.studySvc.QuizResults(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Quiz results lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("could not load results"))
		return
	}
	RespondOK(c, gin.H{"results": results})
}
