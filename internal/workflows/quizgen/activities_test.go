package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/store"
)

type fakeAI struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (f *fakeAI) Generate(ctx context.Context, messages []openai.Message, maxTokens int, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeCache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	return nil
}

func (f *fakeCache) Close() error { return nil }

type fakeStateRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]byte
}

func (f *fakeStateRepo) Load(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID], nil
}

func (f *fakeStateRepo) Save(ctx context.Context, userID uuid.UUID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[userID] = append([]byte(nil), payload...)
	return nil
}

func newTestActivities(t *testing.T, ai *fakeAI, cache *fakeCache) (*Activities, *store.Store) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	st := store.New(&fakeStateRepo{rows: map[uuid.UUID][]byte{}}, log)
	a := &Activities{Log: log, Store: st, AI: ai}
	if cache != nil {
		a.Cache = cache
	}
	return a, st
}

func TestGenerateQuestionsCachesByTopicDifficultyCount(t *testing.T) {
	ai := &fakeAI{responses: []string{
		`{"questions":[{"id":"x","question":"What is velocity?","type":"short-answer","correctAnswer":"Rate of change of position","explanation":"Velocity measures how position changes over time","points":10}]}`,
	}}
	cache := newFakeCache()
	a, _ := newTestActivities(t, ai, cache)

	in := QuestionsInput{Topic: "Physics", Difficulty: study.DifficultyBeginner, QuestionCount: 1, KeyConcepts: []string{"velocity"}}

	first, err := a.GenerateQuestions(context.Background(), in)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if len(first) != 1 || first[0].Question != "What is velocity?" {
		t.Fatalf("first = %+v", first)
	}
	if ai.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", ai.calls)
	}

	second, err := a.GenerateQuestions(context.Background(), in)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("generator calls after cache hit = %d, want 1", ai.calls)
	}
	if second[0].Question != first[0].Question {
		t.Fatalf("cached question = %q", second[0].Question)
	}

	if _, ok := cache.entries[QuestionCacheKey("Physics", study.DifficultyBeginner, 1)]; !ok {
		t.Fatalf("cache keys = %v", cache.entries)
	}

	// A different count is a different cache entry.
	ai.responses = []string{
		`{"questions":[{"id":"x","question":"Define acceleration.","type":"short-answer","correctAnswer":"Rate of change of velocity","explanation":"Acceleration is how quickly velocity itself changes","points":10}]}`,
	}
	in.QuestionCount = 2
	if _, err := a.GenerateQuestions(context.Background(), in); err != nil {
		t.Fatalf("third generate: %v", err)
	}
	if ai.calls != 2 {
		t.Fatalf("generator calls for new count = %d, want 2", ai.calls)
	}
}

func TestGenerateQuestionsFallbackIsNotCached(t *testing.T) {
	ai := &fakeAI{err: errors.New("upstream down")}
	cache := newFakeCache()
	a, _ := newTestActivities(t, ai, cache)

	in := QuestionsInput{Topic: "History", Difficulty: study.DifficultyIntermediate, QuestionCount: 3, KeyConcepts: []string{"causes", "timeline", "figures"}}
	questions, err := a.GenerateQuestions(context.Background(), in)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("fallback count = %d, want 3", len(questions))
	}
	for _, q := range questions {
		if q.Type != study.QuestionShortAnswer {
			t.Fatalf("fallback type = %q", q.Type)
		}
	}
	if len(cache.entries) != 0 {
		t.Fatalf("fallback content must not be cached, got %v", cache.entries)
	}
}

func TestGenerateQuestionsWorksWithoutCache(t *testing.T) {
	ai := &fakeAI{responses: []string{
		`{"questions":[{"id":"q1","question":"True or false: water boils at 100C at sea level.","type":"true-false","correctAnswer":"true","explanation":"At sea-level pressure water boils at 100C","points":5}]}`,
	}}
	a, _ := newTestActivities(t, ai, nil)

	questions, err := a.GenerateQuestions(context.Background(), QuestionsInput{
		Topic: "Chemistry", Difficulty: study.DifficultyBeginner, QuestionCount: 1,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(questions) != 1 || questions[0].Type != study.QuestionTrueFalse {
		t.Fatalf("questions = %+v", questions)
	}
}

func TestIdentifyKeyConceptsSplitsAndTrims(t *testing.T) {
	ai := &fakeAI{responses: []string{"limits , derivatives,, integrals ,"}}
	a, _ := newTestActivities(t, ai, nil)

	concepts, err := a.IdentifyKeyConcepts(context.Background(), ConceptsInput{Topic: "Calculus", Difficulty: study.DifficultyAdvanced})
	if err != nil {
		t.Fatalf("concepts: %v", err)
	}
	want := []string{"limits", "derivatives", "integrals"}
	if len(concepts) != len(want) {
		t.Fatalf("concepts = %v", concepts)
	}
	for i := range want {
		if concepts[i] != want[i] {
			t.Fatalf("concept %d = %q, want %q", i, concepts[i], want[i])
		}
	}
}

func TestIdentifyKeyConceptsFallsBackOnFailure(t *testing.T) {
	ai := &fakeAI{err: errors.New("upstream down")}
	a, _ := newTestActivities(t, ai, nil)

	concepts, err := a.IdentifyKeyConcepts(context.Background(), ConceptsInput{Topic: "Music Theory", Difficulty: study.DifficultyBeginner})
	if err != nil {
		t.Fatalf("concepts: %v", err)
	}
	if len(concepts) != 3 {
		t.Fatalf("fallback concepts = %v", concepts)
	}
	for _, c := range concepts {
		if !strings.Contains(c, "Music Theory") {
			t.Fatalf("fallback concept %q does not mention the topic", c)
		}
	}
}

func TestPersistQuizStoresAndMintsID(t *testing.T) {
	a, st := newTestActivities(t, &fakeAI{}, nil)
	userID := uuid.New()

	quiz, err := a.PersistQuiz(context.Background(), PersistInput{
		UserID:     userID,
		Topic:      "Geometry",
		Difficulty: study.DifficultyBeginner,
		Questions: []study.QuizQuestion{
			{ID: "q1", Question: "How many sides does a triangle have?", Type: study.QuestionShortAnswer, CorrectAnswer: "3", Points: 10},
		},
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !strings.HasPrefix(quiz.ID, "quiz_") {
		t.Fatalf("quiz id = %q", quiz.ID)
	}
	parts := strings.Split(quiz.ID, "_")
	if len(parts) != 3 || len(parts[2]) != 9 {
		t.Fatalf("quiz id shape = %q", quiz.ID)
	}
	if quiz.CreatedAt == 0 {
		t.Fatal("created time not set")
	}

	// The quiz must be retrievable through the store for later submission.
	if _, err := st.SubmitQuiz(context.Background(), userID, quiz.ID, map[string]string{"q1": "3"}); err != nil {
		t.Fatalf("submit persisted quiz: %v", err)
	}
}
