package controllers

import (
	"context"
	"math/rand"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// mouthSyncPriority is the fixed admission priority MouthSync tweens run
// at, so idle mouth animation can never out-rank active lip-sync.
const mouthSyncPriority = 2

// LoudnessSample is one item on a MouthSync feed: a loudness reading, or
// end-of-stream when Done is true. The loudness unit is whatever the
// caller's sampler reports — see MouthSyncConfig.LoudnessThreshold and
// DESIGN.md's Open Question decision on this convention.
type LoudnessSample struct {
	Loudness float64
	Done     bool
}

// MouthSync drives mouth-open from a stream of loudness samples, such as
// the one SayHandler feeds while TTS audio plays.
type MouthSync struct {
	base
	tw     *tweener.Tweener
	config func() MouthSyncConfig
}

// NewMouthSync creates a MouthSync controller.
func NewMouthSync(tw *tweener.Tweener, config func() MouthSyncConfig) *MouthSync {
	return &MouthSync{base: newBase("MouthSync", OneShot), tw: tw, config: config}
}

// Execute consumes samples from a <-chan LoudnessSample (passed as args)
// until it closes or ctx is cancelled, driving mouth-open toward a
// loudness-derived target every 50ms. On end-of-stream or cancellation it
// eases the mouth back closed. args must be a <-chan LoudnessSample; any
// other type is a caller bug and is logged rather than panicking.
func (ms *MouthSync) Execute(ctx context.Context, args any) {
	feed, ok := args.(<-chan LoudnessSample)
	if !ok {
		ms.logger.Error("MouthSync.Execute called with the wrong argument type")
		return
	}
	runCtx, started := ms.tryStart()
	if !started {
		return
	}
	go ms.runOneShot(runCtx, mouthSyncExecutor{ms: ms, feed: feed}, nil)
}

type mouthSyncExecutor struct {
	ms   *MouthSync
	feed <-chan LoudnessSample
}

func (e mouthSyncExecutor) execute(ctx context.Context, _ any) error {
	ms := e.ms
	cfg := ms.config()

	defer func() {
		closeCtx := context.Background()
		ms.tw.Tween(closeCtx, cfg.OpenParameter, cfg.OpenMin, 0.2, easing.OutQuad, tweener.WithPriority(mouthSyncPriority))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, open := <-e.feed:
			if !open || sample.Done {
				return nil
			}
			target := cfg.OpenMin
			if sample.Loudness >= cfg.LoudnessThreshold {
				target = cfg.OpenMin + rand.Float64()*(cfg.OpenMax-cfg.OpenMin)
			}
			ms.tw.Tween(ctx, cfg.OpenParameter, target, 0.05, easing.Linear, tweener.WithPriority(mouthSyncPriority))
			if err := sleepOrDone(ctx, 0.05); err != nil {
				return err
			}
		}
	}
}
