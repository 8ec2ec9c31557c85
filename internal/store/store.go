// Package store is the sole mutation path for per-user study state. Each
// user id gets one mailbox-backed actor goroutine that applies operations in
// arrival order and persists the full state write-through before replying,
// so there are no concurrent mutation races within a user while different
// users proceed independently.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
	"github.com/studyloop/studyloop-backend/internal/pkg/envutil"
	"github.com/studyloop/studyloop-backend/internal/pkg/logger"
	"github.com/studyloop/studyloop-backend/internal/repos"
)

var ErrQuizNotFound = errors.New("quiz not found")

const (
	mailboxSize             = 64
	defaultActorIdleSeconds = 600
)

type Store struct {
	log       *logger.Logger
	repo      repos.UserStateRepo
	idleAfter time.Duration

	mu     sync.Mutex
	actors map[uuid.UUID]*actor
}

func New(repo repos.UserStateRepo, baseLog *logger.Logger) *Store {
	log := baseLog.With("service", "StudyStateStore")
	idleSeconds := envutil.GetEnvAsInt("STORE_ACTOR_IDLE_SECONDS", defaultActorIdleSeconds, log)
	if idleSeconds < 1 {
		idleSeconds = defaultActorIdleSeconds
	}
	return &Store{
		log:       log,
		repo:      repo,
		idleAfter: time.Duration(idleSeconds) * time.Second,
		actors:    map[uuid.UUID]*actor{},
	}
}

type taskResult struct {
	value any
	err   error
}

type task struct {
	ctx    context.Context
	mutate bool
	run    func(st *study.UserState) (any, error)
	reply  chan taskResult
}

type actor struct {
	userID  uuid.UUID
	mailbox chan task

	// pending counts tasks handed to this actor but not yet replied to.
	// Guarded by Store.mu; the run loop refuses to exit while it is nonzero,
	// so a caller that took the handle under the lock can never enqueue into
	// a dead mailbox.
	pending int

	// state is owned by the actor goroutine only.
	state *study.UserState
}

// actorFor returns the user's actor, spawning one if needed, and reserves a
// pending slot for the caller's task.
func (s *Store) actorFor(userID uuid.UUID) *actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[userID]
	if !ok {
		a = &actor{userID: userID, mailbox: make(chan task, mailboxSize)}
		s.actors[userID] = a
		go s.run(a)
	}
	a.pending++
	return a
}

func (s *Store) release(a *actor) {
	s.mu.Lock()
	a.pending--
	s.mu.Unlock()
}

// run applies the actor's tasks in arrival order and reaps the actor after it
// has sat idle for the configured window. Reaping only drops the in-memory
// copy; every mutation was persisted write-through, so the next operation for
// the user spawns a fresh actor that reloads from storage.
func (s *Store) run(a *actor) {
	idle := time.NewTimer(s.idleAfter)
	defer idle.Stop()
	for {
		select {
		case t := <-a.mailbox:
			t.reply <- s.execute(a, t)
			s.release(a)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(s.idleAfter)
		case <-idle.C:
			s.mu.Lock()
			if a.pending > 0 {
				s.mu.Unlock()
				idle.Reset(s.idleAfter)
				continue
			}
			delete(s.actors, a.userID)
			s.mu.Unlock()
			return
		}
	}
}

// do routes one operation through the user's actor and waits for the reply.
func (s *Store) do(ctx context.Context, userID uuid.UUID, mutate bool, run func(st *study.UserState) (any, error)) (any, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("store: missing user id")
	}
	a := s.actorFor(userID)
	t := task{ctx: ctx, mutate: mutate, run: run, reply: make(chan taskResult, 1)}
	select {
	case a.mailbox <- t:
	case <-ctx.Done():
		s.release(a)
		return nil, ctx.Err()
	}
	select {
	case r := <-t.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) execute(a *actor, t task) taskResult {
	if a.state == nil {
		st, err := s.load(t.ctx, a.userID)
		if err != nil {
			return taskResult{err: err}
		}
		a.state = st
	}

	value, err := t.run(a.state)
	if err != nil {
		return taskResult{value: value, err: err}
	}

	if t.mutate {
		if err := s.persist(t.ctx, a.userID, a.state); err != nil {
			// The in-memory copy may now be ahead of the durable row; drop it
			// so the next operation reloads from storage.
			a.state = nil
			return taskResult{err: fmt.Errorf("store: persist user state: %w", err)}
		}
	}
	return taskResult{value: value}
}

func (s *Store) load(ctx context.Context, userID uuid.UUID) (*study.UserState, error) {
	payload, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("store: load user state: %w", err)
	}
	if len(payload) == 0 {
		return study.NewUserState(), nil
	}
	st := study.NewUserState()
	if err := json.Unmarshal(payload, st); err != nil {
		return nil, fmt.Errorf("store: decode user state: %w", err)
	}
	if st.Sessions == nil {
		st.Sessions = map[string]*study.StudySession{}
	}
	if st.ChatHistories == nil {
		st.ChatHistories = map[string][]study.ChatMessage{}
	}
	if st.Quizzes == nil {
		st.Quizzes = map[string]*study.Quiz{}
	}
	return st, nil
}

func (s *Store) persist(ctx context.Context, userID uuid.UUID, st *study.UserState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, userID, payload)
}

func nowMillis() int64 { return time.Now().UnixMilli() }
