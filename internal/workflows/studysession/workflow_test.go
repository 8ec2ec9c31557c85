package studysession

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

type stubConfig struct {
	prior      TopicSnapshot
	summary    string
	summaryErr error
	masteryErr error
}

func newEnv(t *testing.T, cfg stubConfig, calls *[]string) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})

	env.RegisterActivityWithOptions(func(ctx context.Context, in Input) (InitRecord, error) {
		*calls = append(*calls, ActivityInitialize)
		return InitRecord{SessionID: in.SessionID, Topic: in.Topic, Status: "active"}, nil
	}, activity.RegisterOptions{Name: ActivityInitialize})

	env.RegisterActivityWithOptions(func(ctx context.Context, userID uuid.UUID, topic string) (TopicSnapshot, error) {
		*calls = append(*calls, ActivityLoadTopicProgress)
		return cfg.prior, nil
	}, activity.RegisterOptions{Name: ActivityLoadTopicProgress})

	env.RegisterActivityWithOptions(func(ctx context.Context, in SummaryInput) (string, error) {
		*calls = append(*calls, ActivityGenerateSummary)
		if cfg.summaryErr != nil {
			return "", temporal.NewNonRetryableApplicationError("summary failed", "summary", cfg.summaryErr)
		}
		return cfg.summary, nil
	}, activity.RegisterOptions{Name: ActivityGenerateSummary})

	env.RegisterActivityWithOptions(func(ctx context.Context, in MasteryInput) (MasteryUpdate, error) {
		*calls = append(*calls, ActivityUpdateMastery)
		if cfg.masteryErr != nil {
			return MasteryUpdate{}, temporal.NewNonRetryableApplicationError("mastery failed", "mastery", cfg.masteryErr)
		}
		next := NextMasteryLevel(in.PreviousLevel, in.Duration)
		return MasteryUpdate{PreviousLevel: in.PreviousLevel, NewLevel: next, Increase: next - in.PreviousLevel}, nil
	}, activity.RegisterOptions{Name: ActivityUpdateMastery})

	env.RegisterActivityWithOptions(func(ctx context.Context, in ScheduleInput) (RepetitionSchedule, error) {
		*calls = append(*calls, ActivityScheduleRepetition)
		days := ReviewIntervalDays(in.MasteryLevel)
		return RepetitionSchedule{Topic: in.Topic, IntervalDays: days, MasteryLevel: in.MasteryLevel}, nil
	}, activity.RegisterOptions{Name: ActivityScheduleRepetition})

	return env
}

func TestWorkflowFirstSession(t *testing.T) {
	var calls []string
	env := newEnv(t, stubConfig{summary: "Covered the basics of motion."}, &calls)

	input := Input{
		UserID:     uuid.New(),
		SessionID:  "sess-1",
		Topic:      "Physics",
		Duration:   30,
		Difficulty: "beginner",
	}
	env.ExecuteWorkflow(WorkflowName, input)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result Result
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("get result: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.SessionID != "sess-1" {
		t.Fatalf("session id = %q", result.SessionID)
	}
	if result.LearningPath.Approach != "introduction" {
		t.Fatalf("approach = %q, want introduction", result.LearningPath.Approach)
	}
	if result.LearningPath.SuggestedDuration != 30 {
		t.Fatalf("suggested duration = %d", result.LearningPath.SuggestedDuration)
	}
	if result.Summary != "Covered the basics of motion." {
		t.Fatalf("summary = %q", result.Summary)
	}
	// 0 + 5 + 30/10 = 8, still in the 1-day review band.
	if result.MasteryUpdate.NewLevel != 8 {
		t.Fatalf("new mastery = %v, want 8", result.MasteryUpdate.NewLevel)
	}
	if result.MasteryUpdate.Increase != 8 {
		t.Fatalf("increase = %v, want 8", result.MasteryUpdate.Increase)
	}
	if result.RepetitionSchedule.IntervalDays != 1 {
		t.Fatalf("interval = %d, want 1", result.RepetitionSchedule.IntervalDays)
	}

	want := []string{
		ActivityInitialize,
		ActivityLoadTopicProgress,
		ActivityGenerateSummary,
		ActivityUpdateMastery,
		ActivityScheduleRepetition,
	}
	if len(calls) != len(want) {
		t.Fatalf("activity calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestWorkflowReturningLearner(t *testing.T) {
	var calls []string
	env := newEnv(t, stubConfig{
		prior:   TopicSnapshot{MasteryLevel: 72, SessionsCount: 9},
		summary: "Worked through integration problems.",
	}, &calls)

	env.ExecuteWorkflow(WorkflowName, Input{
		UserID:    uuid.New(),
		SessionID: "sess-2",
		Topic:     "Calculus",
		Duration:  120,
	})

	var result Result
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("get result: %v", err)
	}
	if result.LearningPath.Approach != "advanced" {
		t.Fatalf("approach = %q, want advanced", result.LearningPath.Approach)
	}
	// 72 + 5 + min(10, 12) = 87: into the 7-day band.
	if result.MasteryUpdate.NewLevel != 87 {
		t.Fatalf("new mastery = %v, want 87", result.MasteryUpdate.NewLevel)
	}
	if result.RepetitionSchedule.IntervalDays != 7 {
		t.Fatalf("interval = %d, want 7", result.RepetitionSchedule.IntervalDays)
	}
}

func TestWorkflowSummaryFailureUsesFallback(t *testing.T) {
	var calls []string
	env := newEnv(t, stubConfig{
		prior:      TopicSnapshot{MasteryLevel: 20, SessionsCount: 2},
		summaryErr: context.DeadlineExceeded,
	}, &calls)

	env.ExecuteWorkflow(WorkflowName, Input{
		UserID:    uuid.New(),
		SessionID: "sess-3",
		Topic:     "Chemistry",
		Duration:  45,
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result Result
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("get result: %v", err)
	}
	if !result.Success {
		t.Fatal("summary failure must not fail the run")
	}
	if result.Summary != FallbackSummary(45, "Chemistry") {
		t.Fatalf("summary = %q", result.Summary)
	}
	if result.LearningPath.Approach != "reinforcement" {
		t.Fatalf("approach = %q, want reinforcement", result.LearningPath.Approach)
	}
}

func TestWorkflowMasteryFailureIsFatal(t *testing.T) {
	var calls []string
	env := newEnv(t, stubConfig{masteryErr: context.DeadlineExceeded}, &calls)

	env.ExecuteWorkflow(WorkflowName, Input{
		UserID:    uuid.New(),
		SessionID: "sess-4",
		Topic:     "Biology",
		Duration:  15,
	})

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error")
	}
	if !strings.Contains(err.Error(), "mastery failed") {
		t.Fatalf("error = %v", err)
	}
	for _, c := range calls {
		if c == ActivityScheduleRepetition {
			t.Fatal("scheduling must not run after a mastery failure")
		}
	}
}

func TestNextMasteryLevel(t *testing.T) {
	cases := []struct {
		prev     float64
		duration int
		want     float64
	}{
		{0, 30, 8},
		{0, 5, 5},
		{50, 100, 65},
		{50, 200, 65},
		{98, 60, 100},
		{100, 120, 100},
	}
	for _, c := range cases {
		if got := NextMasteryLevel(c.prev, c.duration); got != c.want {
			t.Errorf("NextMasteryLevel(%v, %d) = %v, want %v", c.prev, c.duration, got, c.want)
		}
	}
}

func TestReviewIntervalDays(t *testing.T) {
	cases := []struct {
		mastery float64
		want    int
	}{
		{0, 1},
		{39.9, 1},
		{40, 2},
		{59.9, 2},
		{60, 3},
		{79.9, 3},
		{80, 7},
		{100, 7},
	}
	for _, c := range cases {
		if got := ReviewIntervalDays(c.mastery); got != c.want {
			t.Errorf("ReviewIntervalDays(%v) = %d, want %d", c.mastery, got, c.want)
		}
	}
}

func TestBuildLearningPath(t *testing.T) {
	if p := BuildLearningPath(0, 0, 25); p.Approach != "introduction" || p.SuggestedDuration != 25 {
		t.Fatalf("first session path = %+v", p)
	}
	if p := BuildLearningPath(3, 30, 40); p.Approach != "reinforcement" {
		t.Fatalf("low mastery path = %+v", p)
	}
	if p := BuildLearningPath(8, 50, 60); p.Approach != "advanced" {
		t.Fatalf("mastery 50 path = %+v", p)
	}
	if len(BuildLearningPath(0, 0, 10).FocusAreas) != 4 {
		t.Fatal("expected four focus areas")
	}
}
