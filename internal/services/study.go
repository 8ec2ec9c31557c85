package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/store"
	"github.com/studyloop/studyloop-backend/internal/workflows/quizgen"
	"github.com/studyloop/studyloop-backend/internal/workflows/studysession"
)

const (
	minSessionMinutes = 5
	maxSessionMinutes = 120
	minQuizQuestions  = 1
	maxQuizQuestions  = 20

	tutorMaxTokens   = 500
	tutorHistoryTail = 10
)

type CreateSessionInput struct {
	Topic      string           `json:"topic"`
	Duration   int              `json:"duration"`
	Difficulty study.Difficulty `json:"difficulty"`
}

type CreatedSession struct {
	Session       study.StudySession `json:"session"`
	WorkflowRunID string             `json:"workflowRunId,omitempty"`
}

type GenerateQuizInput struct {
	Topic         string           `json:"topic"`
	QuestionCount int              `json:"questionCount"`
	Difficulty    study.Difficulty `json:"difficulty"`
}

type StudyService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (CreatedSession, error)
	CurrentSession(ctx context.Context, userID uuid.UUID) (*study.StudySession, error)
	CompleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error
	Chat(ctx context.Context, userID uuid.UUID, sessionID, message string) (string, error)
	ChatHistory(ctx context.Context, userID uuid.UUID, sessionID string) ([]study.ChatMessage, error)
	GenerateQuiz(ctx context.Context, userID uuid.UUID, input GenerateQuizInput) (quizgen.Result, error)
	SubmitQuiz(ctx context.Context, userID uuid.UUID, quizID string, answers map[string]string) (study.QuizResult, error)
	QuizResults(ctx context.Context, userID uuid.UUID) ([]study.QuizResult, error)
	Progress(ctx context.Context, userID uuid.UUID) (study.ProgressData, error)
	TopicProgress(ctx context.Context, userID uuid.UUID) ([]study.TopicProgress, error)
	ReviewQueue(ctx context.Context, userID uuid.UUID) ([]study.SpacedRepetitionItem, error)
}

type studyService struct {
	log       *logger.Logger
	store     *store.Store
	ai        openai.Client
	workflows WorkflowService
}

func NewStudyService(log *logger.Logger, st *store.Store, ai openai.Client, workflows WorkflowService) StudyService {
	return &studyService{
		log:       log.With("service", "StudyService"),
		store:     st,
		ai:        ai,
		workflows: workflows,
	}
}

func (ss *studyService) CreateSession(ctx context.Context, userID uuid.UUID, input CreateSessionInput) (CreatedSession, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return CreatedSession{}, &ValidationError{Field: "topic", Message: "topic is required"}
	}
	if input.Duration < minSessionMinutes || input.Duration > maxSessionMinutes {
		return CreatedSession{}, &ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be between %d and %d minutes", minSessionMinutes, maxSessionMinutes),
		}
	}
	if !input.Difficulty.Valid() {
		return CreatedSession{}, &ValidationError{Field: "difficulty", Message: "difficulty must be beginner, intermediate, or advanced"}
	}

	session := study.StudySession{
		ID:         newSessionID(),
		Topic:      topic,
		Duration:   input.Duration,
		Difficulty: input.Difficulty,
		StartTime:  time.Now().UnixMilli(),
		Status:     study.SessionActive,
	}
	if err := ss.store.CreateSession(ctx, userID, session); err != nil {
		return CreatedSession{}, fmt.Errorf("record session: %w", err)
	}

	created := CreatedSession{Session: session}
	runID, err := ss.workflows.StartStudySession(ctx, studysession.Input{
		UserID:     userID,
		SessionID:  session.ID,
		Topic:      topic,
		Duration:   input.Duration,
		Difficulty: string(input.Difficulty),
	})
	if err != nil {
		if errors.Is(err, ErrWorkflowsDisabled) {
			ss.log.Warn("Session recorded without workflow", "session_id", session.ID)
			return created, nil
		}
		return CreatedSession{}, err
	}
	created.WorkflowRunID = runID
	return created, nil
}

func (ss *studyService) CurrentSession(ctx context.Context, userID uuid.UUID) (*study.StudySession, error) {
	return ss.store.GetCurrentSession(ctx, userID)
}

func (ss *studyService) CompleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	return ss.store.CompleteSession(ctx, userID, sessionID)
}

// Chat answers one tutor turn. The generator sees the session's topic and
// difficulty plus the trailing history; a generator failure degrades to a
// templated reply rather than an error, and every turn is recorded either way.
func (ss *studyService) Chat(ctx context.Context, userID uuid.UUID, sessionID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", &ValidationError{Field: "message", Message: "message is required"}
	}

	topic := "your current topic"
	difficulty := study.DifficultyBeginner
	if current, err := ss.store.GetCurrentSession(ctx, userID); err == nil && current != nil && current.ID == sessionID {
		topic = current.Topic
		difficulty = current.Difficulty
	}

	history, err := ss.store.GetChatHistory(ctx, userID, sessionID)
	if err != nil {
		return "", fmt.Errorf("load chat history: %w", err)
	}

	messages := make([]openai.Message, 0, tutorHistoryTail+2)
	messages = append(messages, openai.Message{
		Role: "system",
		Content: fmt.Sprintf(
			"You are a patient study tutor helping a %s-level learner with %s. Keep answers focused and encourage active recall.",
			difficulty, topic,
		),
	})
	tail := history
	if len(tail) > tutorHistoryTail {
		tail = tail[len(tail)-tutorHistoryTail:]
	}
	for _, m := range tail {
		messages = append(messages, openai.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openai.Message{Role: "user", Content: message})

	reply, err := ss.ai.Generate(ctx, messages, tutorMaxTokens, 0.7)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			ss.log.Warn("Tutor reply generation failed", "session_id", sessionID, "error", err)
		}
		reply = fmt.Sprintf("I couldn't reach the tutor right now. Try rephrasing your question about %s, or revisit your notes and ask again.", topic)
	}

	if err := ss.store.AppendChatTurn(ctx, userID, sessionID, message, reply); err != nil {
		return "", fmt.Errorf("record chat turn: %w", err)
	}
	return reply, nil
}

func (ss *studyService) ChatHistory(ctx context.Context, userID uuid.UUID, sessionID string) ([]study.ChatMessage, error) {
	return ss.store.GetChatHistory(ctx, userID, sessionID)
}

func (ss *studyService) GenerateQuiz(ctx context.Context, userID uuid.UUID, input GenerateQuizInput) (quizgen.Result, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return quizgen.Result{}, &ValidationError{Field: "topic", Message: "topic is required"}
	}
	if input.QuestionCount < minQuizQuestions || input.QuestionCount > maxQuizQuestions {
		return quizgen.Result{}, &ValidationError{
			Field:   "questionCount",
			Message: fmt.Sprintf("questionCount must be between %d and %d", minQuizQuestions, maxQuizQuestions),
		}
	}
	if !input.Difficulty.Valid() {
		return quizgen.Result{}, &ValidationError{Field: "difficulty", Message: "difficulty must be beginner, intermediate, or advanced"}
	}

	return ss.workflows.GenerateQuiz(ctx, quizgen.Input{
		UserID:        userID,
		Topic:         topic,
		QuestionCount: input.QuestionCount,
		Difficulty:    input.Difficulty,
	})
}

func (ss *studyService) SubmitQuiz(ctx context.Context, userID uuid.UUID, quizID string, answers map[string]string) (study.QuizResult, error) {
	return ss.store.SubmitQuiz(ctx, userID, quizID, answers)
}

func (ss *studyService) QuizResults(ctx context.Context, userID uuid.UUID) ([]study.QuizResult, error) {
	return ss.store.GetQuizResults(ctx, userID)
}

func (ss *studyService) Progress(ctx context.Context, userID uuid.UUID) (study.ProgressData, error) {
	return ss.store.GetOverallProgress(ctx, userID)
}

func (ss *studyService) TopicProgress(ctx context.Context, userID uuid.UUID) ([]study.TopicProgress, error) {
	return ss.store.GetTopicProgress(ctx, userID)
}

func (ss *studyService) ReviewQueue(ctx context.Context, userID uuid.UUID) ([]study.SpacedRepetitionItem, error) {
	return ss.store.GetReviewQueue(ctx, userID)
}

func newSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
