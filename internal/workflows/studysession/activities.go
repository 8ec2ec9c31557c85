package studysession

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/store"
)

const summaryMaxTokens = 300

// Activities are the side-effecting steps of the study session workflow.
// Each one must tolerate re-execution: the scheduler may retry a step whose
// previous attempt failed partway.
type Activities struct {
	Log   *logger.Logger
	Store *store.Store
	AI    openai.Client
}

func (a *Activities) Initialize(ctx context.Context, input Input) (InitRecord, error) {
	record := InitRecord{
		SessionID: input.SessionID,
		Topic:     input.Topic,
		StartTime: time.Now().UnixMilli(),
		Status:    "initialized",
	}
	if a.Log != nil {
		a.Log.Info("Study session workflow started", "session_id", input.SessionID, "topic", input.Topic, "duration", input.Duration)
	}
	return record, nil
}

func (a *Activities) LoadTopicProgress(ctx context.Context, userID uuid.UUID, topic string) (TopicSnapshot, error) {
	tp, err := a.Store.GetTopicProgressFor(ctx, userID, topic)
	if err != nil {
		return TopicSnapshot{}, err
	}
	if tp == nil {
		return TopicSnapshot{}, nil
	}
	return TopicSnapshot{
		MasteryLevel:  tp.MasteryLevel,
		TimeSpent:     tp.TimeSpent,
		SessionsCount: tp.SessionsCount,
	}, nil
}

// GenerateSummary asks the model for a short recap of the session. Generator
// failures degrade to a templated summary rather than erroring, so this
// activity only fails on store errors.
func (a *Activities) GenerateSummary(ctx context.Context, input SummaryInput) (string, error) {
	history, err := a.Store.GetChatHistory(ctx, input.UserID, input.SessionID)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(
		"Summarize a %d-minute study session on %q. The learner followed an %s approach and exchanged %d chat messages. Highlight what was covered and suggest one next step.",
		input.Duration, input.Topic, input.Approach, len(history),
	)

	text, genErr := a.AI.Generate(ctx, []openai.Message{
		{Role: "system", Content: "You are a study session summarizer. Be concise and encouraging."},
		{Role: "user", Content: prompt},
	}, summaryMaxTokens, 0.3)
	if genErr != nil || strings.TrimSpace(text) == "" {
		if a.Log != nil {
			a.Log.Warn("Summary generation failed; using fallback", "session_id", input.SessionID, "error", genErr)
		}
		return FallbackSummary(input.Duration, input.Topic), nil
	}
	return strings.TrimSpace(text), nil
}

func (a *Activities) UpdateMastery(ctx context.Context, input MasteryInput) (MasteryUpdate, error) {
	newLevel := NextMasteryLevel(input.PreviousLevel, input.Duration)
	if err := a.Store.UpdateTopicMastery(ctx, input.UserID, input.Topic, newLevel); err != nil {
		return MasteryUpdate{}, err
	}
	return MasteryUpdate{
		PreviousLevel: input.PreviousLevel,
		NewLevel:      newLevel,
		Increase:      newLevel - input.PreviousLevel,
	}, nil
}

func (a *Activities) ScheduleRepetition(ctx context.Context, input ScheduleInput) (RepetitionSchedule, error) {
	intervalDays := ReviewIntervalDays(input.MasteryLevel)
	nextReview := time.Now().Add(time.Duration(intervalDays) * 24 * time.Hour).UnixMilli()

	if _, err := a.Store.ScheduleReview(ctx, input.UserID, input.Topic, nextReview, intervalDays); err != nil {
		return RepetitionSchedule{}, err
	}
	return RepetitionSchedule{
		Topic:        input.Topic,
		NextReview:   nextReview,
		IntervalDays: intervalDays,
		MasteryLevel: input.MasteryLevel,
	}, nil
}
