package controllers

import (
	"context"
	"math/rand"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// BodySwing sways the body on random X/Z targets and, when EyeFollow is
// enabled, drives gaze to track the same motion.
type BodySwing struct {
	base
	tw        *tweener.Tweener
	config    func() BodySwingConfig
	eyeConfig func() EyeFollowConfig
}

// NewBodySwing creates a BodySwing controller.
func NewBodySwing(tw *tweener.Tweener, config func() BodySwingConfig, eyeConfig func() EyeFollowConfig) *BodySwing {
	return &BodySwing{base: newBase("BodySwing", Idle), tw: tw, config: config, eyeConfig: eyeConfig}
}

// Start begins the idle loop; a no-op if already running.
func (b *BodySwing) Start() {
	ctx, ok := b.tryStart()
	if !ok {
		return
	}
	go b.runIdleLoop(ctx, b)
}

func (b *BodySwing) runCycle(ctx context.Context) error {
	cfg := b.config()
	eye := b.eyeConfig()

	targetX := cfg.XMin + rand.Float64()*(cfg.XMax-cfg.XMin)
	targetZ := cfg.ZMin + rand.Float64()*(cfg.ZMax-cfg.ZMin)
	duration := cfg.MinDuration + rand.Float64()*(cfg.MaxDuration-cfg.MinDuration)
	fn := easing.Random()

	if !eye.Enabled {
		gather(
			func() { b.tw.Tween(ctx, cfg.XParameter, targetX, duration, fn) },
			func() { b.tw.Tween(ctx, cfg.ZParameter, targetZ, duration, fn) },
		)
		return ctx.Err()
	}

	xRange := cfg.XMax - cfg.XMin
	xNorm := 0.0
	if xRange != 0 {
		xNorm = (targetX - cfg.XMin) / xRange
	}
	eyeX := eye.XMinRange + xNorm*(eye.XMaxRange-eye.XMinRange)

	zRange := cfg.ZMax - cfg.ZMin
	zNorm := 0.0
	if zRange != 0 {
		zNorm = (targetZ - cfg.ZMin) / zRange
	}
	// Inverted on purpose: rising Z (leaning back/up) sends gaze down, so
	// the avatar appears to look toward screen center rather than the sky.
	eyeY := eye.YMaxRange - zNorm*(eye.YMaxRange-eye.YMinRange)

	gather(
		func() { b.tw.Tween(ctx, cfg.XParameter, targetX, duration, fn) },
		func() { b.tw.Tween(ctx, cfg.ZParameter, targetZ, duration, fn) },
		func() { b.tw.Tween(ctx, eye.LeftXParameter, eyeX, duration, fn) },
		func() { b.tw.Tween(ctx, eye.RightXParameter, eyeX, duration, fn) },
		func() { b.tw.Tween(ctx, eye.LeftYParameter, eyeY, duration, fn) },
		func() { b.tw.Tween(ctx, eye.RightYParameter, eyeY, duration, fn) },
	)
	return ctx.Err()
}
