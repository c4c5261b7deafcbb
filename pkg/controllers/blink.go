package controllers

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// Blink closes and opens both eyes on a randomized interval.
type Blink struct {
	base
	tw     *tweener.Tweener
	config func() BlinkConfig
}

// NewBlink creates a Blink controller. config is called fresh on every
// cycle so a live config reload (e.g. on model switch) takes effect
// without restarting the controller.
func NewBlink(tw *tweener.Tweener, config func() BlinkConfig) *Blink {
	return &Blink{base: newBase("Blink", Idle), tw: tw, config: config}
}

// Start begins the idle loop; a no-op if already running.
func (b *Blink) Start() {
	ctx, ok := b.tryStart()
	if !ok {
		return
	}
	go b.runIdleLoop(ctx, b)
}

func gather(fns ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	wg.Wait()
}

func sleepOrDone(ctx context.Context, seconds float64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
		return nil
	}
}

func (b *Blink) runCycle(ctx context.Context) error {
	cfg := b.config()

	gather(
		func() { b.tw.Tween(ctx, cfg.LeftParameter, cfg.MinValue, cfg.CloseDuration, easing.OutSine) },
		func() { b.tw.Tween(ctx, cfg.RightParameter, cfg.MinValue, cfg.CloseDuration, easing.OutSine) },
	)

	if err := sleepOrDone(ctx, cfg.ClosedHold); err != nil {
		return err
	}

	gather(
		func() { b.tw.Tween(ctx, cfg.LeftParameter, cfg.MaxValue, cfg.OpenDuration, easing.InSine) },
		func() { b.tw.Tween(ctx, cfg.RightParameter, cfg.MaxValue, cfg.OpenDuration, easing.InSine) },
	)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	wait := cfg.MinInterval + rand.Float64()*(cfg.MaxInterval-cfg.MinInterval)
	// Cancellation during this wait exits cleanly rather than as an error,
	// matching the original catching CancelledError here specifically.
	if err := sleepOrDone(ctx, wait); err != nil {
		return nil
	}
	return nil
}
