package controllers

import (
	"context"
	"math/rand"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// MouthExpression randomly varies smile and mouth-open amounts for idle
// facial liveliness.
type MouthExpression struct {
	base
	tw     *tweener.Tweener
	config func() MouthExpressionConfig
}

// NewMouthExpression creates a MouthExpression controller.
func NewMouthExpression(tw *tweener.Tweener, config func() MouthExpressionConfig) *MouthExpression {
	return &MouthExpression{base: newBase("MouthExpression", Idle), tw: tw, config: config}
}

// Start begins the idle loop; a no-op if already running.
func (m *MouthExpression) Start() {
	ctx, ok := m.tryStart()
	if !ok {
		return
	}
	go m.runIdleLoop(ctx, m)
}

func (m *MouthExpression) runCycle(ctx context.Context) error {
	cfg := m.config()
	targetSmile := cfg.SmileMin + rand.Float64()*(cfg.SmileMax-cfg.SmileMin)
	targetOpen := cfg.OpenMin + rand.Float64()*(cfg.OpenMax-cfg.OpenMin)
	duration := cfg.ChangeMinDuration + rand.Float64()*(cfg.ChangeMaxDuration-cfg.ChangeMinDuration)
	fn := easing.Random()

	gather(
		func() { m.tw.Tween(ctx, cfg.SmileParameter, targetSmile, duration, fn) },
		func() { m.tw.Tween(ctx, cfg.OpenParameter, targetOpen, duration, fn) },
	)
	return ctx.Err()
}
