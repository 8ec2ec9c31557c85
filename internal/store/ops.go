package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
)

// GetChatHistory returns the session's messages in append order, empty when
// the session has no history yet.
func (s *Store) GetChatHistory(ctx context.Context, userID uuid.UUID, sessionID string) ([]study.ChatMessage, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		history := st.ChatHistories[sessionID]
		out := make([]study.ChatMessage, len(history))
		copy(out, history)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]study.ChatMessage), nil
}

// AppendChatTurn appends a user message and the assistant reply as a pair;
// the assistant timestamp is the user timestamp plus one so ordering survives
// same-millisecond writes.
func (s *Store) AppendChatTurn(ctx context.Context, userID uuid.UUID, sessionID, userText, aiText string) error {
	_, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		t := nowMillis()
		st.ChatHistories[sessionID] = append(st.ChatHistories[sessionID],
			study.ChatMessage{Role: study.RoleUser, Content: userText, Timestamp: t},
			study.ChatMessage{Role: study.RoleAssistant, Content: aiText, Timestamp: t + 1},
		)
		return nil, nil
	})
	return err
}

// CreateSession stores the session, counts it, records the activity, and
// moves the active-session pointer to it.
func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, session study.StudySession) error {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.Topic) == "" {
		return fmt.Errorf("store: session id and topic required")
	}
	_, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		copied := session
		st.Sessions[copied.ID] = &copied
		st.ActiveSessionID = copied.ID
		st.Progress.TotalSessions++
		prependActivity(&st.Progress, study.ActivityRecord{
			Type:      study.ActivitySession,
			Topic:     copied.Topic,
			Timestamp: nowMillis(),
		})
		return nil, nil
	})
	return err
}

// GetCurrentSession resolves the active-session pointer; nil when no session
// is active.
func (s *Store) GetCurrentSession(ctx context.Context, userID uuid.UUID) (*study.StudySession, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		if st.ActiveSessionID == "" {
			return (*study.StudySession)(nil), nil
		}
		session, ok := st.Sessions[st.ActiveSessionID]
		if !ok || session.Status != study.SessionActive {
			return (*study.StudySession)(nil), nil
		}
		copied := *session
		return &copied, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*study.StudySession), nil
}

// CompleteSession marks the session completed and folds its elapsed time into
// the aggregates. Completing an unknown or already-completed session is a
// silent no-op.
func (s *Store) CompleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	_, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		session, ok := st.Sessions[sessionID]
		if !ok || session.Status == study.SessionCompleted {
			return nil, nil
		}
		now := nowMillis()
		session.Status = study.SessionCompleted
		session.EndTime = &now

		minutes := float64(now-session.StartTime) / 60000.0
		if minutes < 0 {
			minutes = 0
		}
		st.Progress.TotalStudyTime += minutes

		tp := ensureTopic(st, session.Topic)
		tp.TimeSpent += minutes
		tp.SessionsCount++
		tp.LastStudied = now
		tp.MasteryLevel = study.Mastery(tp.SessionsCount, tp.QuizAverage)

		if st.ActiveSessionID == sessionID {
			st.ActiveSessionID = ""
		}
		bumpStreak(st, time.UnixMilli(now))
		return nil, nil
	})
	return err
}

func (s *Store) SaveQuiz(ctx context.Context, userID uuid.UUID, quiz study.Quiz) error {
	if strings.TrimSpace(quiz.ID) == "" {
		return fmt.Errorf("store: quiz id required")
	}
	_, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		copied := quiz
		st.Quizzes[copied.ID] = &copied
		return nil, nil
	})
	return err
}

// SubmitQuiz scores the submission (case-insensitive exact answer match),
// appends the result, and refreshes the overall and per-topic aggregates.
// Submissions are append-only: resubmitting the same quiz records a new
// result each time.
func (s *Store) SubmitQuiz(ctx context.Context, userID uuid.UUID, quizID string, answers map[string]string) (study.QuizResult, error) {
	v, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		quiz, ok := st.Quizzes[quizID]
		if !ok {
			return nil, ErrQuizNotFound
		}

		score := 0
		for _, q := range quiz.Questions {
			submitted, answered := answers[q.ID]
			if answered && answersMatch(submitted, q.CorrectAnswer) {
				score += q.Points
			}
		}
		maxScore := quiz.MaxScore()
		percentage := 0.0
		if maxScore > 0 {
			percentage = 100 * float64(score) / float64(maxScore)
		}

		result := study.QuizResult{
			QuizID:      quizID,
			Score:       score,
			MaxScore:    maxScore,
			Percentage:  percentage,
			CompletedAt: nowMillis(),
			Answers:     answers,
		}
		st.QuizResults = append(st.QuizResults, result)
		st.Progress.TotalQuizzes++
		st.Progress.AverageScore = meanPercentage(st.QuizResults)

		prependActivity(&st.Progress, study.ActivityRecord{
			Type:       study.ActivityQuiz,
			Topic:      quiz.Topic,
			Timestamp:  result.CompletedAt,
			Percentage: &result.Percentage,
		})

		tp := ensureTopic(st, quiz.Topic)
		tp.QuizAverage = topicQuizAverage(st, quiz.Topic)
		tp.MasteryLevel = study.Mastery(tp.SessionsCount, tp.QuizAverage)

		return result, nil
	})
	if err != nil {
		return study.QuizResult{}, err
	}
	return v.(study.QuizResult), nil
}

func (s *Store) GetQuizResults(ctx context.Context, userID uuid.UUID) ([]study.QuizResult, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		out := make([]study.QuizResult, len(st.QuizResults))
		copy(out, st.QuizResults)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]study.QuizResult), nil
}

func (s *Store) GetOverallProgress(ctx context.Context, userID uuid.UUID) (study.ProgressData, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		p := st.Progress
		p.TopicsStudied = append([]study.TopicProgress(nil), st.Progress.TopicsStudied...)
		p.RecentActivity = append([]study.ActivityRecord(nil), st.Progress.RecentActivity...)
		return p, nil
	})
	if err != nil {
		return study.ProgressData{}, err
	}
	return v.(study.ProgressData), nil
}

func (s *Store) GetTopicProgress(ctx context.Context, userID uuid.UUID) ([]study.TopicProgress, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		return append([]study.TopicProgress(nil), st.Progress.TopicsStudied...), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]study.TopicProgress), nil
}

// GetTopicProgressFor returns nil when the topic has never been studied;
// workflow callers treat that as all-zero progress.
func (s *Store) GetTopicProgressFor(ctx context.Context, userID uuid.UUID, topic string) (*study.TopicProgress, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		for i := range st.Progress.TopicsStudied {
			if st.Progress.TopicsStudied[i].Topic == topic {
				copied := st.Progress.TopicsStudied[i]
				return &copied, nil
			}
		}
		return (*study.TopicProgress)(nil), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*study.TopicProgress), nil
}

// UpdateTopicMastery overwrites the topic's mastery level, clamped to
// [0,100], creating the topic entry when absent.
func (s *Store) UpdateTopicMastery(ctx context.Context, userID uuid.UUID, topic string, level float64) error {
	_, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		tp := ensureTopic(st, topic)
		if level < 0 {
			level = 0
		}
		if level > 100 {
			level = 100
		}
		tp.MasteryLevel = level
		return nil, nil
	})
	return err
}

// ScheduleReview upserts the topic's spaced-repetition entry. A new topic
// starts at ease factor 2.5; each repetition nudges it up by 0.1.
func (s *Store) ScheduleReview(ctx context.Context, userID uuid.UUID, topic string, nextReview int64, intervalDays int) (study.SpacedRepetitionItem, error) {
	v, err := s.do(ctx, userID, true, func(st *study.UserState) (any, error) {
		for i := range st.SpacedRepetitionQueue {
			item := &st.SpacedRepetitionQueue[i]
			if item.Topic == topic {
				item.NextReview = nextReview
				item.Interval = intervalDays
				item.Repetitions++
				item.EaseFactor += 0.1
				return *item, nil
			}
		}
		item := study.SpacedRepetitionItem{
			Topic:       topic,
			NextReview:  nextReview,
			Interval:    intervalDays,
			EaseFactor:  2.5,
			Repetitions: 1,
		}
		st.SpacedRepetitionQueue = append(st.SpacedRepetitionQueue, item)
		return item, nil
	})
	if err != nil {
		return study.SpacedRepetitionItem{}, err
	}
	return v.(study.SpacedRepetitionItem), nil
}

func (s *Store) GetReviewQueue(ctx context.Context, userID uuid.UUID) ([]study.SpacedRepetitionItem, error) {
	v, err := s.do(ctx, userID, false, func(st *study.UserState) (any, error) {
		return append([]study.SpacedRepetitionItem(nil), st.SpacedRepetitionQueue...), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]study.SpacedRepetitionItem), nil
}

func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

func meanPercentage(results []study.QuizResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Percentage
	}
	return sum / float64(len(results))
}

// topicQuizAverage is the mean percentage across results belonging to
// quizzes of the given topic.
func topicQuizAverage(st *study.UserState, topic string) float64 {
	sum := 0.0
	count := 0
	for _, r := range st.QuizResults {
		quiz, ok := st.Quizzes[r.QuizID]
		if !ok || quiz.Topic != topic {
			continue
		}
		sum += r.Percentage
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func ensureTopic(st *study.UserState, topic string) *study.TopicProgress {
	for i := range st.Progress.TopicsStudied {
		if st.Progress.TopicsStudied[i].Topic == topic {
			return &st.Progress.TopicsStudied[i]
		}
	}
	st.Progress.TopicsStudied = append(st.Progress.TopicsStudied, study.TopicProgress{Topic: topic})
	return &st.Progress.TopicsStudied[len(st.Progress.TopicsStudied)-1]
}

func prependActivity(p *study.ProgressData, record study.ActivityRecord) {
	p.RecentActivity = append([]study.ActivityRecord{record}, p.RecentActivity...)
	if len(p.RecentActivity) > study.RecentActivityLimit {
		p.RecentActivity = p.RecentActivity[:study.RecentActivityLimit]
	}
}

// bumpStreak applies the streak rule: consecutive UTC calendar days with at
// least one completed session extend the streak, a same-day completion
// leaves it unchanged, and a gap resets it to one.
func bumpStreak(st *study.UserState, completedAt time.Time) {
	day := completedAt.UTC().Format("2006-01-02")
	if st.LastStudyDay == day {
		return
	}
	if st.LastStudyDay != "" {
		if prev, err := time.Parse("2006-01-02", st.LastStudyDay); err == nil &&
			prev.AddDate(0, 0, 1).Format("2006-01-02") == day {
			st.Progress.CurrentStreak++
		} else {
			st.Progress.CurrentStreak = 1
		}
	} else {
		st.Progress.CurrentStreak = 1
	}
	if st.Progress.CurrentStreak > st.Progress.LongestStreak {
		st.Progress.LongestStreak = st.Progress.CurrentStreak
	}
	st.LastStudyDay = day
}
