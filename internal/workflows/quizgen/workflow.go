package quizgen

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/quizcodec"
)

// EstimatedMinutesPerQuestion sizes the quiz's suggested time budget.
const EstimatedMinutesPerQuestion = 2

// Workflow builds and persists a quiz: analyze prior progress, extract key
// concepts, generate questions (cached for an hour per topic/difficulty/count),
// validate, derive the answer key, and store the quiz. Generator failures
// degrade to deterministic fallback content; only persistence failures are
// fatal to the run.
func Workflow(ctx workflow.Context, input Input) (Result, error) {
	result := Result{}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumInterval: 30 * time.Second,
			MaximumAttempts: 5,
		},
	})

	var analysis ContentAnalysis
	if err := workflow.ExecuteActivity(ctx, ActivityAnalyzeContent, input.UserID, input.Topic).Get(ctx, &analysis); err != nil {
		return result, err
	}

	var concepts []string
	conceptsIn := ConceptsInput{Topic: input.Topic, Difficulty: input.Difficulty}
	if err := workflow.ExecuteActivity(ctx, ActivityIdentifyKeyConcepts, conceptsIn).Get(ctx, &concepts); err != nil {
		return result, err
	}
	result.KeyConcepts = concepts

	questionsIn := QuestionsInput{
		Topic:         input.Topic,
		Difficulty:    input.Difficulty,
		QuestionCount: input.QuestionCount,
		KeyConcepts:   concepts,
	}
	var generated []study.QuizQuestion
	if err := workflow.ExecuteActivity(ctx, ActivityGenerateQuestions, questionsIn).Get(ctx, &generated); err != nil {
		return result, err
	}

	// Quality gate: the generation step already validates, but cached or
	// fallback content passes through the same rules once more.
	validated := quizcodec.NormalizeQuestions(generated, input.QuestionCount)

	answerKey := make(map[string]string, len(validated))
	for _, q := range validated {
		answerKey[q.ID] = q.CorrectAnswer
	}
	result.AnswerKey = answerKey

	persistIn := PersistInput{
		UserID:     input.UserID,
		Topic:      input.Topic,
		Difficulty: input.Difficulty,
		Questions:  validated,
	}
	var persisted study.Quiz
	if err := workflow.ExecuteActivity(ctx, ActivityPersistQuiz, persistIn).Get(ctx, &persisted); err != nil {
		return result, err
	}

	result.Success = true
	result.QuizID = persisted.ID
	result.Quiz = QuizSummary{
		Quiz:          persisted,
		TotalPoints:   persisted.MaxScore(),
		EstimatedTime: EstimatedMinutesPerQuestion * len(persisted.Questions),
	}
	return result, nil
}
