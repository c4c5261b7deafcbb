// Package controllers implements the animation drivers built on top of the
// tweener: idle loops (blink, breathe, body-sway-with-eye-follow, mouth
// micro-expression) and one-shot effects (mouth-sync, expression-apply),
// plus the ControllerManager that registers, starts, pauses, and locates
// them by name.
package controllers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nekro-live/animctl/internal/errs"
	"github.com/nekro-live/animctl/internal/log"
)

// Kind distinguishes the two controller lifecycles spec.md §4.3 names.
type Kind int

const (
	// Idle controllers run a restartable loop until stopped.
	Idle Kind = iota
	// OneShot controllers run once to completion or cancellation.
	OneShot
)

// idleCycle is implemented by idle controllers: one loop iteration.
type idleCycle interface {
	runCycle(ctx context.Context) error
}

// oneShotExec is implemented by one-shot controllers: the whole run.
type oneShotExec interface {
	execute(ctx context.Context, args any) error
}

// base provides the lifecycle machinery common to every controller: start
// is idempotent, stop cooperatively cancels and waits, stop_without_wait
// cancels without waiting. A cycle's own errors are logged and never
// terminate the controller; a lost avatar connection terminates it
// cleanly, logged at info level rather than as an error.
type base struct {
	name string
	kind Kind

	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newBase(name string, kind Kind) base {
	return base{
		name:   name,
		kind:   kind,
		logger: log.L().With("controller", name),
	}
}

// Name returns the controller's registered name (its Go type name by
// convention, matching the original's class-name lookup).
func (b *base) Name() string { return b.name }

// Kind reports whether this is an Idle or OneShot controller.
func (b *base) Kind() Kind { return b.kind }

// IsRunning reports whether a task is currently live.
func (b *base) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

func (b *base) tryStart() (context.Context, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	return ctx, true
}

func (b *base) finish() {
	b.mu.Lock()
	b.cancel = nil
	done := b.done
	b.done = nil
	b.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// StopWithoutWait cancels the running task without waiting for it to exit.
func (b *base) StopWithoutWait() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the running task and waits for it to exit.
func (b *base) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// runIdleLoop drives an idle controller's run_cycle until ctx is
// cancelled. Cycle errors are logged (except cancellation and connection
// loss) and never stop the loop.
func (b *base) runIdleLoop(ctx context.Context, c idleCycle) {
	defer b.finish()
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.runCycle(ctx)
		if err == nil {
			continue
		}
		if errs.IsCancelled(err) || ctx.Err() != nil {
			return
		}
		if errs.IsConnection(err) {
			b.logger.Info("avatar connection lost, stopping controller")
			return
		}
		b.logger.Error("cycle failed", "error", err)
	}
}

// runOneShot drives a one-shot controller's execute to completion.
func (b *base) runOneShot(ctx context.Context, c oneShotExec, args any) {
	defer b.finish()
	if err := c.execute(ctx, args); err != nil && !errs.IsCancelled(err) {
		b.logger.Error("execution failed", "error", err)
	}
}
