// Package actionscheduler ingests user-submitted action batches, enforces
// their temporal relationships (per-action delay, TTS gating, per-batch
// looping), and dispatches each action to its handler. Grounded on
// action_scheduler.py, generalized from its singleton/global instance to
// an explicit constructed value the composition root owns.
package actionscheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nekro-live/animctl/internal/log"
)

// Scheduler holds the pending action queue and the per-type handler table.
type Scheduler struct {
	logger *slog.Logger

	mu    sync.Mutex
	queue []Action

	handlers map[Type]Handler
}

// New creates a Scheduler dispatching to the given per-type handlers. A
// type with no handler logs a warning and is otherwise dropped.
func New(handlers map[Type]Handler) *Scheduler {
	return &Scheduler{
		logger:   log.L().With("component", "action_scheduler"),
		handlers: handlers,
	}
}

// AddAction appends to the pending queue and returns an estimated
// completion time (delay plus any statically-known duration).
func (s *Scheduler) AddAction(a Action) float64 {
	s.mu.Lock()
	s.queue = append(s.queue, a)
	n := len(s.queue)
	s.mu.Unlock()
	s.logger.Debug("action queued", "type", a.Type, "queue_size", n)
	return a.completionTime()
}

// ClearQueue discards every pending action.
func (s *Scheduler) ClearQueue() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.logger.Info("action queue cleared")
}

// ExecuteQueue snapshots and clears the pending queue, then runs that
// snapshot loop+1 times. A concurrent AddAction during execution targets
// the next batch, never the one currently running — the snapshot-then-
// clear under the lock below is what guarantees that.
func (s *Scheduler) ExecuteQueue(ctx context.Context, loop int) {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.logger.Info("executing action queue", "actions", len(batch), "loop", loop)
	if len(batch) == 0 {
		return
	}

	hasTTS := false
	for _, a := range batch {
		if a.hasTTSText() {
			hasTTS = true
			break
		}
	}

	totalRuns := loop + 1
	for i := 0; i < totalRuns; i++ {
		s.logger.Info("executing batch iteration", "iteration", i+1, "of", totalRuns)

		var latch *TTSLatch
		if hasTTS {
			latch = NewTTSLatch()
		}

		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, a := range batch {
			a := a
			go func() {
				defer wg.Done()
				s.executeAction(ctx, a, latch)
			}()
		}
		wg.Wait()
	}

	s.logger.Debug("action queue execution complete")
}

func (s *Scheduler) executeAction(ctx context.Context, a Action, latch *TTSLatch) {
	if delay := a.delay(); delay > 0 {
		if err := sleepOrDone(ctx, delay); err != nil {
			return
		}
	}

	handler, ok := s.handlers[a.Type]
	if !ok {
		s.logger.Warn("no handler registered for action type", "type", a.Type)
		return
	}
	if err := handler.Handle(ctx, a, latch); err != nil {
		s.logger.Error("action handler failed", "type", a.Type, "error", err)
	}
}

func sleepOrDone(ctx context.Context, seconds float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return nil
	}
}
