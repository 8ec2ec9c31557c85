package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/store"
	"github.com/studyloop/studyloop-backend/internal/workflows/quizgen"
	"github.com/studyloop/studyloop-backend/internal/workflows/studysession"
)

type memStateRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]byte
}

func (m *memStateRepo) Load(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID], nil
}

func (m *memStateRepo) Save(ctx context.Context, userID uuid.UUID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = append([]byte(nil), payload...)
	return nil
}

type scriptedAI struct {
	reply string
	err   error
}

func (s *scriptedAI) Generate(ctx context.Context, messages []openai.Message, maxTokens int, temperature float64) (string, error) {
	return s.reply, s.err
}

type fakeWorkflows struct {
	sessionStarts []studysession.Input
	startErr      error
	quizResult    quizgen.Result
}

func (f *fakeWorkflows) StartStudySession(ctx context.Context, input studysession.Input) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.sessionStarts = append(f.sessionStarts, input)
	return "run-1", nil
}

func (f *fakeWorkflows) GenerateQuiz(ctx context.Context, input quizgen.Input) (quizgen.Result, error) {
	return f.quizResult, nil
}

func newStudyService(t *testing.T, ai *scriptedAI, wf *fakeWorkflows) StudyService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	st := store.New(&memStateRepo{rows: map[uuid.UUID][]byte{}}, log)
	return NewStudyService(log, st, ai, wf)
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newStudyService(t, &scriptedAI{}, &fakeWorkflows{})
	userID := uuid.New()

	cases := []CreateSessionInput{
		{Topic: "", Duration: 30, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", Duration: 4, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", Duration: 121, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", Duration: 30, Difficulty: "expert"},
	}
	for i, in := range cases {
		_, err := svc.CreateSession(context.Background(), userID, in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("case %d: err = %v, want validation error", i, err)
		}
	}
}

func TestCreateSessionStartsWorkflow(t *testing.T) {
	wf := &fakeWorkflows{}
	svc := newStudyService(t, &scriptedAI{}, wf)
	userID := uuid.New()

	created, err := svc.CreateSession(context.Background(), userID, CreateSessionInput{
		Topic: "  Physics ", Duration: 30, Difficulty: study.DifficultyBeginner,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Session.Topic != "Physics" {
		t.Fatalf("topic = %q, want trimmed", created.Session.Topic)
	}
	if created.Session.Status != study.SessionActive {
		t.Fatalf("status = %q", created.Session.Status)
	}
	if !strings.HasPrefix(created.Session.ID, "session_") {
		t.Fatalf("session id = %q", created.Session.ID)
	}
	if created.WorkflowRunID != "run-1" {
		t.Fatalf("run id = %q", created.WorkflowRunID)
	}
	if len(wf.sessionStarts) != 1 || wf.sessionStarts[0].SessionID != created.Session.ID {
		t.Fatalf("workflow starts = %+v", wf.sessionStarts)
	}

	current, err := svc.CurrentSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current == nil || current.ID != created.Session.ID {
		t.Fatalf("current = %+v", current)
	}
}

func TestCreateSessionWithoutTemporalStillRecords(t *testing.T) {
	wf := &fakeWorkflows{startErr: ErrWorkflowsDisabled}
	svc := newStudyService(t, &scriptedAI{}, wf)
	userID := uuid.New()

	created, err := svc.CreateSession(context.Background(), userID, CreateSessionInput{
		Topic: "Chemistry", Duration: 25, Difficulty: study.DifficultyIntermediate,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.WorkflowRunID != "" {
		t.Fatalf("run id = %q, want empty", created.WorkflowRunID)
	}
	current, err := svc.CurrentSession(context.Background(), userID)
	if err != nil || current == nil {
		t.Fatalf("current = %+v, err = %v", current, err)
	}
}

func TestChatRecordsTurnAndDegradesOnFailure(t *testing.T) {
	ai := &scriptedAI{err: errors.New("upstream down")}
	svc := newStudyService(t, ai, &fakeWorkflows{})
	userID := uuid.New()

	created, err := svc.CreateSession(context.Background(), userID, CreateSessionInput{
		Topic: "Algebra", Duration: 20, Difficulty: study.DifficultyBeginner,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reply, err := svc.Chat(context.Background(), userID, created.Session.ID, "What is a polynomial?")
	if err != nil {
		t.Fatalf("chat must not fail on generator errors: %v", err)
	}
	if !strings.Contains(reply, "Algebra") {
		t.Fatalf("fallback reply = %q, want topic mentioned", reply)
	}

	history, err := svc.ChatHistory(context.Background(), userID, created.Session.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != study.RoleUser || history[1].Role != study.RoleAssistant {
		t.Fatalf("roles = %q, %q", history[0].Role, history[1].Role)
	}
	if history[1].Timestamp != history[0].Timestamp+1 {
		t.Fatalf("timestamps = %d, %d", history[0].Timestamp, history[1].Timestamp)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc := newStudyService(t, &scriptedAI{reply: "hi"}, &fakeWorkflows{})
	_, err := svc.Chat(context.Background(), uuid.New(), "session_1", "   ")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGenerateQuizValidation(t *testing.T) {
	svc := newStudyService(t, &scriptedAI{}, &fakeWorkflows{})
	userID := uuid.New()

	cases := []GenerateQuizInput{
		{Topic: "", QuestionCount: 5, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", QuestionCount: 0, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", QuestionCount: 21, Difficulty: study.DifficultyBeginner},
		{Topic: "Physics", QuestionCount: 5, Difficulty: "impossible"},
	}
	for i, in := range cases {
		_, err := svc.GenerateQuiz(context.Background(), userID, in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("case %d: err = %v, want validation error", i, err)
		}
	}
}
