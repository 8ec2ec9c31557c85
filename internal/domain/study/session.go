package study

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
)

// StudySession timestamps are unix milliseconds, matching the rest of the
// client-facing state payload.
type StudySession struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	Duration   int           `json:"duration"`
	Difficulty Difficulty    `json:"difficulty"`
	StartTime  int64         `json:"startTime"`
	EndTime    *int64        `json:"endTime,omitempty"`
	Status     SessionStatus `json:"status"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
	RoleSystem    ChatRole = "system"
)

type ChatMessage struct {
	Role      ChatRole `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
}
