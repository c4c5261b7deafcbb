// Package tweener owns every avatar parameter under software control. It
// arbitrates concurrent tween requests by priority, keeps the avatar host
// "hot" with a periodic keep-alive refresh, and exposes the single
// admission-controlled entry point the rest of the system drives animation
// through.
package tweener

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/easing"
)

// ParameterSetter is the minimal surface Tweener needs from the avatar
// client. Following the teacher's interface-segregation style, Tweener
// depends on this instead of the full avatarclient.Client so it can be
// tested with a mock and so the dependency direction stays one-way.
type ParameterSetter interface {
	SetParameterValue(ctx context.Context, name string, value float64, mode string) error
}

// defaultKeepAliveInterval matches the original's 0.8s cadence: frequent
// enough that the avatar host's own face tracker never reasserts control
// over a parameter we last wrote.
const defaultKeepAliveInterval = 800 * time.Millisecond

type activeTween struct {
	id       uint64
	priority int
	cancel   chan struct{}
}

// Tweener is safe for concurrent use by multiple goroutines.
type Tweener struct {
	setter ParameterSetter
	logger *slog.Logger

	keepAliveInterval time.Duration

	mu     sync.Mutex
	values map[string]float64
	active map[string]*activeTween
	nextID uint64

	keepAliveCancel context.CancelFunc
	keepAliveDone   chan struct{}
}

// New creates a Tweener bound to setter. The keep-alive loop is not started
// until Start is called.
func New(setter ParameterSetter) *Tweener {
	return &Tweener{
		setter:            setter,
		logger:            log.L().With("component", "tweener"),
		keepAliveInterval: defaultKeepAliveInterval,
		values:            make(map[string]float64),
		active:            make(map[string]*activeTween),
	}
}

// Start launches the keep-alive loop. Calling Start while already running
// is a no-op, matching the original's idempotent start().
func (tw *Tweener) Start() {
	tw.mu.Lock()
	if tw.keepAliveCancel != nil {
		tw.mu.Unlock()
		tw.logger.Warn("keep-alive loop already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	tw.keepAliveCancel = cancel
	tw.keepAliveDone = make(chan struct{})
	tw.mu.Unlock()

	go tw.keepAliveLoop(ctx, tw.keepAliveDone)
	tw.logger.Info("tweener keep-alive started")
}

// Stop cancels the keep-alive loop and waits for it to exit.
func (tw *Tweener) Stop() {
	tw.mu.Lock()
	cancel := tw.keepAliveCancel
	done := tw.keepAliveDone
	tw.keepAliveCancel = nil
	tw.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	tw.logger.Info("tweener keep-alive stopped")
}

func (tw *Tweener) keepAliveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(tw.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tw.refreshUnheld(ctx)
		}
	}
}

// refreshUnheld re-sends the last committed value for every parameter that
// currently has no active tween.
func (tw *Tweener) refreshUnheld(ctx context.Context) {
	tw.mu.Lock()
	snapshot := make(map[string]float64, len(tw.values))
	for p, v := range tw.values {
		if _, held := tw.active[p]; !held {
			snapshot[p] = v
		}
	}
	tw.mu.Unlock()

	for p, v := range snapshot {
		if err := tw.setter.SetParameterValue(ctx, p, v, "set"); err != nil {
			tw.logger.Error("keep-alive set failed", "parameter", p, "error", err)
		}
	}
}

// Tween requests a transition of param from its current (or explicit
// start) value to end over duration, shaped by fn, under priority. A
// pending or running tween on the same parameter is replaced only if
// priority is strictly greater than the existing one; otherwise the call
// is a silent no-op (the caller observes no error — this is rejection by
// design, not failure).
//
// fps controls the step rate of the slow path; 0 selects 60.
func (tw *Tweener) Tween(ctx context.Context, param string, end, duration float64, fn easing.Func, opts ...TweenOption) {
	cfg := tweenConfig{fps: 60, mode: "set"}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.fps <= 0 {
		cfg.fps = 60
	}
	if fn == nil {
		fn = easing.Linear
	}

	start := cfg.start
	if !cfg.hasStart {
		tw.mu.Lock()
		start = tw.values[param]
		tw.mu.Unlock()
	}

	id := tw.nextTweenID()

	if duration <= 0 || start == end {
		if !tw.admitImmediate(param, cfg.priority) {
			return
		}
		tw.commit(param, end)
		if err := tw.setter.SetParameterValue(ctx, param, end, cfg.mode); err != nil {
			tw.logger.Error("immediate set failed", "parameter", param, "error", err)
		}
		return
	}

	myCancel := make(chan struct{})
	if !tw.admit(param, id, cfg.priority, myCancel) {
		return
	}

	steps := int(math.Round(duration * float64(cfg.fps)))
	if steps < 1 {
		steps = 1
	}
	interval := duration / float64(steps)
	startTime := time.Now()

	defer tw.release(param, id)

	for step := 1; step <= steps; step++ {
		t := float64(step) / float64(steps)
		value := start + (end-start)*fn(t)

		if tw.stillOwns(param, id) {
			tw.commit(param, value)
			if err := tw.setter.SetParameterValue(ctx, param, value, cfg.mode); err != nil {
				tw.logger.Error("tween step failed", "parameter", param, "error", err)
			}
		} else {
			return
		}

		nextTime := startTime.Add(time.Duration(float64(step) * interval * float64(time.Second)))
		sleep := time.Until(nextTime)
		if sleep <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-myCancel:
			return
		case <-time.After(sleep):
		}
	}
}

type tweenConfig struct {
	start    float64
	hasStart bool
	mode     string
	fps      int
	priority int
}

// TweenOption customizes a single Tween call.
type TweenOption func(*tweenConfig)

// WithStart overrides the value Tween interpolates from. Without it, Tween
// uses the parameter's last committed value, or 0 if never set.
func WithStart(v float64) TweenOption {
	return func(c *tweenConfig) { c.start = v; c.hasStart = true }
}

// WithMode selects the avatar host's parameter-injection blend mode.
// Defaults to "set" (absolute).
func WithMode(mode string) TweenOption {
	return func(c *tweenConfig) { c.mode = mode }
}

// WithFPS overrides the slow path's step rate. Defaults to 60.
func WithFPS(fps int) TweenOption {
	return func(c *tweenConfig) { c.fps = fps }
}

// WithPriority sets the admission priority. Defaults to 0.
func WithPriority(p int) TweenOption {
	return func(c *tweenConfig) { c.priority = p }
}

func (tw *Tweener) nextTweenID() uint64 {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.nextID++
	return tw.nextID
}

// admit applies the priority arbitration rule: a new request is installed
// iff it has strictly greater priority than whatever currently owns param
// (or nothing owns it yet). Returns false when the request is rejected.
// On preemption the outgoing owner's cancel channel is closed so its
// goroutine wakes immediately instead of riding out its current step
// interval — the closest Go analogue to the original cancelling the
// loser's asyncio.Task outright.
func (tw *Tweener) admit(param string, id uint64, priority int, cancel chan struct{}) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if existing, ok := tw.active[param]; ok {
		if priority <= existing.priority {
			tw.logger.Debug("tween rejected by admission", "parameter", param, "existing_priority", existing.priority, "requested_priority", priority)
			return false
		}
		tw.logger.Debug("tween preempting lower-priority owner", "parameter", param, "existing_priority", existing.priority, "requested_priority", priority)
		close(existing.cancel)
	}
	tw.active[param] = &activeTween{id: id, priority: priority, cancel: cancel}
	return true
}

// admitImmediate applies the same priority rule as admit but never installs
// an active-tween entry for itself: the fast path writes once and returns,
// so there is nothing for a later tween to discover as "still running" —
// it only needs to evict a lower-priority owner, if any.
func (tw *Tweener) admitImmediate(param string, priority int) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if existing, ok := tw.active[param]; ok {
		if priority <= existing.priority {
			tw.logger.Debug("immediate set rejected by admission", "parameter", param, "existing_priority", existing.priority, "requested_priority", priority)
			return false
		}
		tw.logger.Debug("immediate set preempting lower-priority owner", "parameter", param, "existing_priority", existing.priority, "requested_priority", priority)
		close(existing.cancel)
		delete(tw.active, param)
	}
	return true
}

// stillOwns reports whether id is still the admitted owner of param. A
// cancelled or superseded tween must stop writing to param the instant
// this returns false.
func (tw *Tweener) stillOwns(param string, id uint64) bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	owner, ok := tw.active[param]
	return ok && owner.id == id
}

// release removes param's active-tween entry iff it is still owned by id.
// A preempted task's entry was already overwritten by its successor, so
// this is a no-op for it — exactly the "a cancelled task does not remove
// an entry it no longer owns" invariant.
func (tw *Tweener) release(param string, id uint64) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if owner, ok := tw.active[param]; ok && owner.id == id {
		delete(tw.active, param)
	}
}

func (tw *Tweener) commit(param string, value float64) {
	tw.mu.Lock()
	tw.values[param] = value
	tw.mu.Unlock()
}

// Value returns the last committed value for param, and whether it has
// ever been set.
func (tw *Tweener) Value(param string) (float64, bool) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	v, ok := tw.values[param]
	return v, ok
}

// ReleaseAll clears every committed value. In-flight tweens are not
// cancelled: each keeps running to completion and commits its remaining
// steps, so a parameter whose tween is still in flight reappears in the
// committed map and is refreshed again by a running keep-alive loop.
func (tw *Tweener) ReleaseAll() {
	tw.mu.Lock()
	tw.values = make(map[string]float64)
	tw.mu.Unlock()
	tw.logger.Info("released all tweener-controlled parameters")
}
