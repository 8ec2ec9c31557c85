package study

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserState is the full per-user study state. It is owned by exactly one
// store actor at a time and serialized as a whole into the user_state row
// after every mutation.
type UserState struct {
	Sessions              map[string]*StudySession `json:"sessions"`
	ChatHistories         map[string][]ChatMessage `json:"chatHistories"`
	Quizzes               map[string]*Quiz         `json:"quizzes"`
	QuizResults           []QuizResult             `json:"quizResults"`
	Progress              ProgressData             `json:"progress"`
	SpacedRepetitionQueue []SpacedRepetitionItem   `json:"spacedRepetitionQueue"`

	// ActiveSessionID points at the session returned by "current session"
	// lookups; set on create, cleared when that session completes.
	ActiveSessionID string `json:"activeSessionId,omitempty"`

	// LastStudyDay is the UTC calendar day ("2006-01-02") of the most recent
	// completed session; drives the streak counters.
	LastStudyDay string `json:"lastStudyDay,omitempty"`
}

func NewUserState() *UserState {
	return &UserState{
		Sessions:      map[string]*StudySession{},
		ChatHistories: map[string][]ChatMessage{},
		Quizzes:       map[string]*Quiz{},
	}
}

// UserStateRecord is the persisted row: one per user, lazily created on the
// first store operation for that user.
type UserStateRecord struct {
	UserID    uuid.UUID      `gorm:"type:uuid;primaryKey;column:user_id" json:"user_id"`
	State     datatypes.JSON `gorm:"not null;column:state" json:"state"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserStateRecord) TableName() string { return "user_state" }
