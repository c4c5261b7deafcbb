package actionscheduler

import (
	"context"
	"encoding/json"

	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

// Handler executes one action's effect. ttsStart is non-nil only during an
// iteration that contains at least one "say" action with non-empty
// tts_text; handlers that don't care about TTS gating (animation,
// expression, sound_play) ignore it, matching the original's handlers
// accepting but not using it.
type Handler interface {
	Handle(ctx context.Context, action Action, ttsStart *TTSLatch) error
}

// AnimationHandler dispatches "animation" actions straight to the Tweener,
// resolving the easing function by name with a linear fallback.
type AnimationHandler struct {
	Tweener *tweener.Tweener
}

func (h *AnimationHandler) Handle(ctx context.Context, action Action, _ *TTSLatch) error {
	var d AnimationData
	if err := json.Unmarshal(action.Data, &d); err != nil {
		return err
	}
	fn, ok := easing.Lookup(d.Easing)
	if !ok {
		log.L().Warn("unknown easing, falling back to linear", "easing", d.Easing, "parameter", d.Parameter)
	}

	priority := d.Priority
	if priority < 1 {
		priority = 1
	}

	opts := []tweener.TweenOption{tweener.WithPriority(priority)}
	if d.From != nil {
		opts = append(opts, tweener.WithStart(*d.From))
	}
	h.Tweener.Tween(ctx, d.Parameter, d.Target, d.Duration, fn, opts...)
	return nil
}

// ExpressionActivator is the minimal avatar-client surface ExpressionHandler
// needs (shared shape with controllers.ExpressionActivator).
type ExpressionActivator interface {
	ActivateExpression(ctx context.Context, expressionFile string, active bool) error
}

// ExpressionHandler dispatches "expression" actions: activate, then (if
// Duration > 0) sleep and deactivate.
type ExpressionHandler struct {
	Client ExpressionActivator
}

func (h *ExpressionHandler) Handle(ctx context.Context, action Action, _ *TTSLatch) error {
	var d ExpressionData
	if err := json.Unmarshal(action.Data, &d); err != nil {
		return err
	}
	if d.Name == "" {
		return nil
	}
	if err := h.Client.ActivateExpression(ctx, d.Name, true); err != nil {
		return err
	}
	if d.Duration > 0 {
		if err := sleepOrDone(ctx, d.Duration); err != nil {
			return err
		}
		return h.Client.ActivateExpression(ctx, d.Name, false)
	}
	return nil
}

// SoundEnqueuer is the minimal AudioPlayer surface SoundPlayHandler needs.
type SoundEnqueuer interface {
	Play(d SoundPlayData)
}

// SoundPlayHandler enqueues a "sound_play" action and returns without
// waiting for playback to finish.
type SoundPlayHandler struct {
	Player SoundEnqueuer
}

func (h *SoundPlayHandler) Handle(_ context.Context, action Action, _ *TTSLatch) error {
	var d SoundPlayData
	if err := json.Unmarshal(action.Data, &d); err != nil {
		return err
	}
	h.Player.Play(d)
	return nil
}
