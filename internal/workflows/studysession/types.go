package studysession

import "github.com/google/uuid"

const (
	WorkflowName = "study_session"

	ActivityInitialize         = "study_session_initialize"
	ActivityLoadTopicProgress  = "study_session_load_topic_progress"
	ActivityGenerateSummary    = "study_session_generate_summary"
	ActivityUpdateMastery      = "study_session_update_mastery"
	ActivityScheduleRepetition = "study_session_schedule_repetition"
)

type Input struct {
	UserID     uuid.UUID `json:"user_id"`
	SessionID  string    `json:"session_id"`
	Topic      string    `json:"topic"`
	Duration   int       `json:"duration"`
	Difficulty string    `json:"difficulty"`
}

type InitRecord struct {
	SessionID string `json:"sessionId"`
	Topic     string `json:"topic"`
	StartTime int64  `json:"startTime"`
	Status    string `json:"status"`
}

type LearningPath struct {
	Approach          string   `json:"approach"`
	FocusAreas        []string `json:"focusAreas"`
	SuggestedDuration int      `json:"suggestedDuration"`
}

type SummaryInput struct {
	UserID    uuid.UUID `json:"user_id"`
	SessionID string    `json:"session_id"`
	Topic     string    `json:"topic"`
	Approach  string    `json:"approach"`
	Duration  int       `json:"duration"`
}

type MasteryInput struct {
	UserID        uuid.UUID `json:"user_id"`
	Topic         string    `json:"topic"`
	PreviousLevel float64   `json:"previousLevel"`
	Duration      int       `json:"duration"`
}

type MasteryUpdate struct {
	PreviousLevel float64 `json:"previousLevel"`
	NewLevel      float64 `json:"newLevel"`
	Increase      float64 `json:"increase"`
}

type ScheduleInput struct {
	UserID       uuid.UUID `json:"user_id"`
	Topic        string    `json:"topic"`
	MasteryLevel float64   `json:"masteryLevel"`
}

type RepetitionSchedule struct {
	Topic        string  `json:"topic"`
	NextReview   int64   `json:"nextReview"`
	IntervalDays int     `json:"intervalDays"`
	MasteryLevel float64 `json:"masteryLevel"`
}

type Result struct {
	Success            bool               `json:"success"`
	SessionID          string             `json:"sessionId"`
	Summary            string             `json:"summary"`
	MasteryUpdate      MasteryUpdate      `json:"masteryUpdate"`
	RepetitionSchedule RepetitionSchedule `json:"repetitionSchedule"`
	LearningPath       LearningPath       `json:"learningPath"`
}
