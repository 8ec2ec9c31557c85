package studysession

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow runs one study session end to end: it classifies the learning
// path from prior progress, waits out the session duration on a durable
// timer, summarizes the session, bumps topic mastery, and schedules the next
// spaced-repetition review. Every step is checkpointed by the Temporal event
// history, so a worker crash resumes after the last completed step.
func Workflow(ctx workflow.Context, input Input) (Result, error) {
	result := Result{SessionID: input.SessionID}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumInterval: 30 * time.Second,
			MaximumAttempts: 5,
		},
	})

	var init InitRecord
	if err := workflow.ExecuteActivity(ctx, ActivityInitialize, input).Get(ctx, &init); err != nil {
		return result, err
	}

	var prior TopicSnapshot
	if err := workflow.ExecuteActivity(ctx, ActivityLoadTopicProgress, input.UserID, input.Topic).Get(ctx, &prior); err != nil {
		return result, err
	}

	// Deterministic classification; no activity needed.
	result.LearningPath = BuildLearningPath(prior.SessionsCount, prior.MasteryLevel, input.Duration)

	// The session itself: a durable timer, not a blocking thread. Cancelling
	// the run during the wait leaves the steps below unexecuted; nothing
	// already recorded is rolled back.
	if err := workflow.Sleep(ctx, time.Duration(input.Duration)*time.Minute); err != nil {
		return result, err
	}

	summaryIn := SummaryInput{
		UserID:    input.UserID,
		SessionID: input.SessionID,
		Topic:     input.Topic,
		Approach:  result.LearningPath.Approach,
		Duration:  input.Duration,
	}
	if err := workflow.ExecuteActivity(ctx, ActivityGenerateSummary, summaryIn).Get(ctx, &result.Summary); err != nil {
		// Summaries are best-effort; never fail the run over one.
		result.Summary = FallbackSummary(input.Duration, input.Topic)
	}

	masteryIn := MasteryInput{
		UserID:        input.UserID,
		Topic:         input.Topic,
		PreviousLevel: prior.MasteryLevel,
		Duration:      input.Duration,
	}
	if err := workflow.ExecuteActivity(ctx, ActivityUpdateMastery, masteryIn).Get(ctx, &result.MasteryUpdate); err != nil {
		return result, err
	}

	scheduleIn := ScheduleInput{
		UserID:       input.UserID,
		Topic:        input.Topic,
		MasteryLevel: result.MasteryUpdate.NewLevel,
	}
	if err := workflow.ExecuteActivity(ctx, ActivityScheduleRepetition, scheduleIn).Get(ctx, &result.RepetitionSchedule); err != nil {
		return result, err
	}

	result.Success = true
	return result, nil
}

// TopicSnapshot is the slice of TopicProgress the workflow needs; absent
// topics load as zeros.
type TopicSnapshot struct {
	MasteryLevel  float64 `json:"masteryLevel"`
	TimeSpent     float64 `json:"timeSpent"`
	SessionsCount int     `json:"sessionsCount"`
}

// BuildLearningPath classifies the session approach from prior progress:
// first contact is an introduction, mastery under 50 gets reinforcement,
// everything above works on advanced material.
func BuildLearningPath(sessionsCount int, masteryLevel float64, requestedDuration int) LearningPath {
	var approach string
	var focus []string
	switch {
	case sessionsCount == 0:
		approach = "introduction"
		focus = []string{"basics", "fundamental principles", "simple examples", "terminology"}
	case masteryLevel < 50:
		approach = "reinforcement"
		focus = []string{"review", "practice problems", "common misconceptions", "applications"}
	default:
		approach = "advanced"
		focus = []string{"advanced aspects", "complex scenarios", "edge cases", "integration"}
	}
	return LearningPath{
		Approach:          approach,
		FocusAreas:        focus,
		SuggestedDuration: requestedDuration,
	}
}

// NextMasteryLevel adds a flat 5 per session plus 1 per 10 minutes studied
// (capped at 10), never exceeding 100.
func NextMasteryLevel(previous float64, durationMinutes int) float64 {
	bonus := durationMinutes / 10
	if bonus > 10 {
		bonus = 10
	}
	level := previous + 5 + float64(bonus)
	if level > 100 {
		level = 100
	}
	return level
}

// ReviewIntervalDays widens the spaced-repetition interval as mastery grows.
func ReviewIntervalDays(masteryLevel float64) int {
	switch {
	case masteryLevel >= 80:
		return 7
	case masteryLevel >= 60:
		return 3
	case masteryLevel >= 40:
		return 2
	default:
		return 1
	}
}

func FallbackSummary(durationMinutes int, topic string) string {
	return fmt.Sprintf("Completed %d-minute study session on %s.", durationMinutes, topic)
}
