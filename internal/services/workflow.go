package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/temporalx"
	"github.com/studyloop/studyloop-backend/internal/workflows/quizgen"
	"github.com/studyloop/studyloop-backend/internal/workflows/studysession"
)

// ErrWorkflowsDisabled is returned when no Temporal client is configured
// (TEMPORAL_ADDRESS unset); sessions still record, but nothing durable runs.
var ErrWorkflowsDisabled = errors.New("temporal workflows are not configured")

type WorkflowService interface {
	StartStudySession(ctx context.Context, input studysession.Input) (string, error)
	GenerateQuiz(ctx context.Context, input quizgen.Input) (quizgen.Result, error)
}

type workflowService struct {
	log *logger.Logger
	tc  temporalsdkclient.Client
	cfg temporalx.Config
}

func NewWorkflowService(log *logger.Logger, tc temporalsdkclient.Client) WorkflowService {
	return &workflowService{
		log: log.With("service", "WorkflowService"),
		tc:  tc,
		cfg: temporalx.LoadConfig(),
	}
}

// StartStudySession fires the session workflow and returns the run id. The
// workflow id is derived from the session id, so retriggering the same
// session attaches to the running workflow instead of starting a second one.
func (ws *workflowService) StartStudySession(ctx context.Context, input studysession.Input) (string, error) {
	if ws.tc == nil {
		return "", ErrWorkflowsDisabled
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("study-session-%s", input.SessionID),
		TaskQueue: ws.cfg.TaskQueue,
	}
	run, err := ws.tc.ExecuteWorkflow(ctx, opts, studysession.WorkflowName, input)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			ws.log.Info("Study session workflow already running", "workflow_id", opts.ID)
			return already.RunId, nil
		}
		return "", fmt.Errorf("start study session workflow: %w", err)
	}
	ws.log.Info("Study session workflow started", "workflow_id", opts.ID, "run_id", run.GetRunID())
	return run.GetRunID(), nil
}

// GenerateQuiz runs the quiz workflow to completion and returns its result.
// Quiz generation has no durable timer, so a synchronous wait keeps the HTTP
// contract simple.
func (ws *workflowService) GenerateQuiz(ctx context.Context, input quizgen.Input) (quizgen.Result, error) {
	if ws.tc == nil {
		return quizgen.Result{}, ErrWorkflowsDisabled
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        fmt.Sprintf("quiz-gen-%s-%s", input.UserID, uuid.NewString()),
		TaskQueue: ws.cfg.TaskQueue,
	}
	run, err := ws.tc.ExecuteWorkflow(ctx, opts, quizgen.WorkflowName, input)
	if err != nil {
		return quizgen.Result{}, fmt.Errorf("start quiz workflow: %w", err)
	}
	var result quizgen.Result
	if err := run.Get(ctx, &result); err != nil {
		return quizgen.Result{}, fmt.Errorf("quiz workflow failed: %w", err)
	}
	return result, nil
}
