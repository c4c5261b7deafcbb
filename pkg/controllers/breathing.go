package controllers

import (
	"context"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// Breathing tweens a single parameter between its inhale and exhale
// extremes on a fixed timing.
type Breathing struct {
	base
	tw     *tweener.Tweener
	config func() BreathingConfig
}

// NewBreathing creates a Breathing controller.
func NewBreathing(tw *tweener.Tweener, config func() BreathingConfig) *Breathing {
	return &Breathing{base: newBase("Breathing", Idle), tw: tw, config: config}
}

// Start begins the idle loop; a no-op if already running.
func (b *Breathing) Start() {
	ctx, ok := b.tryStart()
	if !ok {
		return
	}
	go b.runIdleLoop(ctx, b)
}

func (b *Breathing) runCycle(ctx context.Context) error {
	cfg := b.config()
	b.tw.Tween(ctx, cfg.Parameter, cfg.MaxValue, cfg.InhaleDuration, easing.InOutSine)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	b.tw.Tween(ctx, cfg.Parameter, cfg.MinValue, cfg.ExhaleDuration, easing.InOutSine)
	return ctx.Err()
}
