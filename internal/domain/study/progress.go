package study

import "math"

type ActivityKind string

const (
	ActivitySession ActivityKind = "session"
	ActivityQuiz    ActivityKind = "quiz"
)

// RecentActivityLimit bounds ProgressData.RecentActivity; the oldest entries
// are truncated once the list is full.
const RecentActivityLimit = 50

type ActivityRecord struct {
	Type       ActivityKind `json:"type"`
	Topic      string       `json:"topic"`
	Timestamp  int64        `json:"timestamp"`
	Percentage *float64     `json:"percentage,omitempty"`
}

type TopicProgress struct {
	Topic         string  `json:"topic"`
	MasteryLevel  float64 `json:"masteryLevel"`
	TimeSpent     float64 `json:"timeSpent"`
	SessionsCount int     `json:"sessionsCount"`
	QuizAverage   float64 `json:"quizAverage"`
	LastStudied   int64   `json:"lastStudied"`
}

// Mastery derives the 0-100 mastery score from session count and quiz average.
func Mastery(sessionsCount int, quizAverage float64) float64 {
	return math.Min(100, float64(sessionsCount)*10+quizAverage*0.5)
}

type ProgressData struct {
	TotalStudyTime float64          `json:"totalStudyTime"`
	TotalSessions  int              `json:"totalSessions"`
	TotalQuizzes   int              `json:"totalQuizzes"`
	AverageScore   float64          `json:"averageScore"`
	CurrentStreak  int              `json:"currentStreak"`
	LongestStreak  int              `json:"longestStreak"`
	TopicsStudied  []TopicProgress  `json:"topicsStudied"`
	RecentActivity []ActivityRecord `json:"recentActivity"`
}

type SpacedRepetitionItem struct {
	Topic       string  `json:"topic"`
	NextReview  int64   `json:"nextReview"`
	Interval    int     `json:"interval"`
	EaseFactor  float64 `json:"easeFactor"`
	Repetitions int     `json:"repetitions"`
}
