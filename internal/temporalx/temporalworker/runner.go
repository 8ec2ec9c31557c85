package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/studyloop/studyloop-backend/internal/clients/openai"
	"github.com/studyloop/studyloop-backend/internal/clients/redis"
	"github.com/studyloop/studyloop-backend/internal/pkg/envutil"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/store"
	"github.com/studyloop/studyloop-backend/internal/temporalx"
	"github.com/studyloop/studyloop-backend/internal/workflows/quizgen"
	"github.com/studyloop/studyloop-backend/internal/workflows/studysession"
)

// Runner hosts the task-queue worker for both workflow types.
type Runner struct {
	log *logger.Logger

	tc    temporalsdkclient.Client
	store *store.Store
	ai    openai.Client
	cache redis.Cache
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	st *store.Store,
	ai openai.Client,
	cache redis.Cache,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if st == nil || ai == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:   log,
		tc:    tc,
		store: st,
		ai:    ai,
		cache: cache,
	}, nil
}

// Start brings the worker up, retrying while the Temporal frontend is still
// warming. On success it keeps polling until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}

	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	// Local/self-hosted convenience: ensure namespace exists before polling.
	// Temporal Cloud namespaces should be pre-created and TEMPORAL_AUTO_REGISTER_NAMESPACE should be false.
	if envutil.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
		baseCtx := ctx
		if baseCtx == nil {
			baseCtx = context.Background()
		}
		if err := temporalx.EnsureNamespace(baseCtx, cfg, r.log); err != nil && r.log != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, r.log)) * time.Second
	backoff := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_BACKOFF_MS", 250, r.log)) * time.Millisecond
	backoffMax := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000, r.log)) * time.Millisecond

	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			if ctx != nil {
				go func() {
					<-ctx.Done()
					w.Stop()
				}()
			}
			if r.log != nil {
				r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}

		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && envutil.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
			baseCtx := ctx
			if baseCtx == nil {
				baseCtx = context.Background()
			}
			_ = temporalx.EnsureNamespace(baseCtx, cfg, r.log)
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			var nfe2 *serviceerror.NamespaceNotFound
			if errors.As(startErr, &nfe2) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}

		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		}

		sleep := clampBackoff(backoff, backoffMax, attempt)
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := envutil.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	sessionActs := &studysession.Activities{Log: r.log, Store: r.store, AI: r.ai}
	w.RegisterWorkflowWithOptions(studysession.Workflow, workflow.RegisterOptions{Name: studysession.WorkflowName})
	w.RegisterActivityWithOptions(sessionActs.Initialize, activity.RegisterOptions{Name: studysession.ActivityInitialize})
	w.RegisterActivityWithOptions(sessionActs.LoadTopicProgress, activity.RegisterOptions{Name: studysession.ActivityLoadTopicProgress})
	w.RegisterActivityWithOptions(sessionActs.GenerateSummary, activity.RegisterOptions{Name: studysession.ActivityGenerateSummary})
	w.RegisterActivityWithOptions(sessionActs.UpdateMastery, activity.RegisterOptions{Name: studysession.ActivityUpdateMastery})
	w.RegisterActivityWithOptions(sessionActs.ScheduleRepetition, activity.RegisterOptions{Name: studysession.ActivityScheduleRepetition})

	quizActs := &quizgen.Activities{Log: r.log, Store: r.store, AI: r.ai, Cache: r.cache}
	w.RegisterWorkflowWithOptions(quizgen.Workflow, workflow.RegisterOptions{Name: quizgen.WorkflowName})
	w.RegisterActivityWithOptions(quizActs.AnalyzeContent, activity.RegisterOptions{Name: quizgen.ActivityAnalyzeContent})
	w.RegisterActivityWithOptions(quizActs.IdentifyKeyConcepts, activity.RegisterOptions{Name: quizgen.ActivityIdentifyKeyConcepts})
	w.RegisterActivityWithOptions(quizActs.GenerateQuestions, activity.RegisterOptions{Name: quizgen.ActivityGenerateQuestions})
	w.RegisterActivityWithOptions(quizActs.PersistQuiz, activity.RegisterOptions{Name: quizgen.ActivityPersistQuiz})

	return w
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
