package quizgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/clients/redis"
	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/quizcodec"
	"github.com/studyloop/studyloop-backend/internal/store"
)

const (
	conceptsMaxTokens  = 200
	questionsMaxTokens = 2500
	questionsTemp      = 0.8
	questionCacheTTL   = time.Hour
	quizIDSuffixLength = 9
)

type Activities struct {
	Log   *logger.Logger
	Store *store.Store
	AI    openai.Client
	Cache redis.Cache
}

func (a *Activities) AnalyzeContent(ctx context.Context, userID uuid.UUID, topic string) (ContentAnalysis, error) {
	tp, err := a.Store.GetTopicProgressFor(ctx, userID, topic)
	if err != nil {
		return ContentAnalysis{}, err
	}
	if tp == nil {
		return ContentAnalysis{}, nil
	}
	return ContentAnalysis{
		MasteryLevel:  tp.MasteryLevel,
		SessionsCount: tp.SessionsCount,
		QuizAverage:   tp.QuizAverage,
	}, nil
}

// IdentifyKeyConcepts asks the model for 5-10 comma-separated concept
// phrases; on failure it falls back to templated concepts so the workflow
// always has material to quiz on.
func (a *Activities) IdentifyKeyConcepts(ctx context.Context, input ConceptsInput) ([]string, error) {
	prompt := fmt.Sprintf(
		"List 5-10 key concepts a %s-level learner should know about %q. Reply with a single comma-separated list, no numbering.",
		input.Difficulty, input.Topic,
	)
	text, err := a.AI.Generate(ctx, []openai.Message{
		{Role: "system", Content: "You are a curriculum expert."},
		{Role: "user", Content: prompt},
	}, conceptsMaxTokens, 0.5)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("Key concept generation failed; using fallback", "topic", input.Topic, "error", err)
		}
		return FallbackConcepts(input.Topic), nil
	}

	concepts := SplitConcepts(text)
	if len(concepts) == 0 {
		return FallbackConcepts(input.Topic), nil
	}
	return concepts, nil
}

// GenerateQuestions serves from the topic/difficulty/count cache when it
// can, otherwise prompts the model and caches the validated result for an
// hour. Any generation failure yields the codec's deterministic fallback,
// uncached.
func (a *Activities) GenerateQuestions(ctx context.Context, input QuestionsInput) ([]study.QuizQuestion, error) {
	cacheKey := QuestionCacheKey(input.Topic, input.Difficulty, input.QuestionCount)

	if a.Cache != nil {
		var cached []study.QuizQuestion
		hit, err := a.Cache.Get(ctx, cacheKey, &cached)
		if err != nil && a.Log != nil {
			a.Log.Warn("Question cache read failed", "key", cacheKey, "error", err)
		}
		if hit && len(cached) > 0 {
			if a.Log != nil {
				a.Log.Debug("Question cache hit", "key", cacheKey)
			}
			return cached, nil
		}
	}

	prompt := fmt.Sprintf(
		"Create exactly %d quiz questions about %q at %s difficulty, covering these concepts: %s. "+
			"Respond with JSON only, no prose, in the form "+
			`{"questions":[{"id":"q1","question":"...","type":"multiple-choice|true-false|short-answer","options":["..."],"correctAnswer":"...","explanation":"...","points":10}]}`,
		input.QuestionCount, input.Topic, input.Difficulty, strings.Join(input.KeyConcepts, ", "),
	)

	text, err := a.AI.Generate(ctx, []openai.Message{
		{Role: "system", Content: "You are a quiz generator. Output strictly valid JSON."},
		{Role: "user", Content: prompt},
	}, questionsMaxTokens, questionsTemp)
	if err != nil {
		if a.Log != nil {
			a.Log.Warn("Question generation failed; using fallback", "topic", input.Topic, "error", err)
		}
		return quizcodec.Fallback(input.QuestionCount, input.Topic, input.KeyConcepts), nil
	}

	questions := quizcodec.Parse(text, input.QuestionCount, input.Topic, input.KeyConcepts)

	if a.Cache != nil && len(questions) > 0 {
		if err := a.Cache.Put(ctx, cacheKey, questions, questionCacheTTL); err != nil && a.Log != nil {
			a.Log.Warn("Question cache write failed", "key", cacheKey, "error", err)
		}
	}
	return questions, nil
}

// PersistQuiz writes the quiz under a fresh id. A retried attempt mints a
// new id and overwrites cleanly, so the step is safe to re-execute.
func (a *Activities) PersistQuiz(ctx context.Context, input PersistInput) (study.Quiz, error) {
	quiz := study.Quiz{
		ID:         NewQuizID(),
		Topic:      input.Topic,
		Difficulty: input.Difficulty,
		Questions:  input.Questions,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := a.Store.SaveQuiz(ctx, input.UserID, quiz); err != nil {
		return study.Quiz{}, err
	}
	return quiz, nil
}

func QuestionCacheKey(topic string, difficulty study.Difficulty, count int) string {
	return fmt.Sprintf("quiz:%s:%s:%d", topic, difficulty, count)
}

func SplitConcepts(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func FallbackConcepts(topic string) []string {
	return []string{
		fmt.Sprintf("%s fundamentals", topic),
		fmt.Sprintf("Core principles of %s", topic),
		fmt.Sprintf("Applications of %s", topic),
	}
}

func NewQuizID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:quizIDSuffixLength]
	return fmt.Sprintf("quiz_%d_%s", time.Now().UnixMilli(), suffix)
}
