package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tourwise/server/internal/agent/graph"
	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
	logx "github.com/tourwise/server/pkg/logger"
)

// Engine drives one conversation turn end to end: load the session, run the
// graph, persist the outcome. Turns for the same session are serialised with
// a per-session lock; the store itself does no compare-and-swap.
type Engine struct {
	runner      graph.Runner
	sessions    model.SessionRepository
	turnTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serialises turns for one session. Reference counted so the
// lock table shrinks once a session has no turn in flight.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(runner graph.Runner, sessions model.SessionRepository, config model.ConversationConfig) (*Engine, error) {
	timeout, err := time.ParseDuration(config.TurnTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid turn timeout %q: %w", config.TurnTimeout, err)
	}
	return &Engine{
		runner:      runner,
		sessions:    sessions,
		turnTimeout: timeout,
		locks:       make(map[string]*sessionLock),
	}, nil
}

// HandleTurn processes one user message for a session. State is persisted
// only after the graph reaches its terminal node; a failed turn leaves the
// stored session untouched.
func (e *Engine) HandleTurn(ctx context.Context, userID, sessionID, query string) (*model.TurnOutput, error) {
	lock := e.acquireLock(sessionID)
	defer e.releaseLock(sessionID, lock)

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	snapshot, err := e.loadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	out, err := e.runner.Invoke(ctx, model.TurnInput{
		UserID:    userID,
		SessionID: sessionID,
		Query:     query,
		History:   snapshot.Messages,
		Title:     snapshot.Title,
	})
	if err != nil {
		logx.Error().
			Str("session_id", sessionID).
			Dur("elapsed", time.Since(started)).
			Err(err).
			Msg("turn failed, session state unchanged")
		return nil, err
	}

	if err := e.sessions.Save(ctx, sessionID, out.Messages, out.Title); err != nil {
		return nil, err
	}

	logx.Info().
		Str("session_id", sessionID).
		Str("intent", string(out.Intent)).
		Dur("elapsed", time.Since(started)).
		Msg("turn completed")
	return out, nil
}

// loadSnapshot reads the stored session, retrying a retryable infrastructure
// failure once. The load is idempotent; writes are never retried.
func (e *Engine) loadSnapshot(ctx context.Context, sessionID string) (*model.SessionSnapshot, error) {
	snapshot, err := e.sessions.Load(ctx, sessionID)
	if err != nil && errx.IsRetryable(err) && ctx.Err() == nil {
		logx.Warn().Str("session_id", sessionID).Err(err).Msg("session load failed, retrying once")
		snapshot, err = e.sessions.Load(ctx, sessionID)
	}
	return snapshot, err
}

func (e *Engine) acquireLock(sessionID string) *sessionLock {
	e.mu.Lock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		e.locks[sessionID] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (e *Engine) releaseLock(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.locks, sessionID)
	}
	e.mu.Unlock()
}
