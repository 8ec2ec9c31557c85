package quizgen

import (
	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
)

const (
	WorkflowName = "quiz_generation"

	ActivityAnalyzeContent      = "quiz_generation_analyze_content"
	ActivityIdentifyKeyConcepts = "quiz_generation_identify_key_concepts"
	ActivityGenerateQuestions   = "quiz_generation_generate_questions"
	ActivityPersistQuiz         = "quiz_generation_persist_quiz"
)

type Input struct {
	UserID        uuid.UUID        `json:"user_id"`
	Topic         string           `json:"topic"`
	QuestionCount int              `json:"questionCount"`
	Difficulty    study.Difficulty `json:"difficulty"`
}

type ContentAnalysis struct {
	MasteryLevel  float64 `json:"masteryLevel"`
	SessionsCount int     `json:"sessionsCount"`
	QuizAverage   float64 `json:"quizAverage"`
}

type ConceptsInput struct {
	Topic      string           `json:"topic"`
	Difficulty study.Difficulty `json:"difficulty"`
}

type QuestionsInput struct {
	Topic         string           `json:"topic"`
	Difficulty    study.Difficulty `json:"difficulty"`
	QuestionCount int              `json:"questionCount"`
	KeyConcepts   []string         `json:"keyConcepts"`
}

type PersistInput struct {
	UserID     uuid.UUID            `json:"user_id"`
	Topic      string               `json:"topic"`
	Difficulty study.Difficulty     `json:"difficulty"`
	Questions  []study.QuizQuestion `json:"questions"`
}

// QuizSummary is the client-facing quiz payload: the stored quiz plus the
// derived totals.
type QuizSummary struct {
	study.Quiz
	TotalPoints   int `json:"totalPoints"`
	EstimatedTime int `json:"estimatedTime"`
}

type Result struct {
	Success     bool              `json:"success"`
	QuizID      string            `json:"quizId"`
	Quiz        QuizSummary       `json:"quiz"`
	AnswerKey   map[string]string `json:"answerKey"`
	KeyConcepts []string          `json:"keyConcepts"`
}
