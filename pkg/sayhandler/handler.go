// Package sayhandler couples text-to-speech synthesis to lip-sync and
// subtitle display for "say" actions, grounded on
// nekro_live_studio/action_handlers/say_handler.py.
package sayhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/actionscheduler"
	"github.com/nekro-live/animctl/pkg/controllers"
	"github.com/nekro-live/animctl/pkg/tts"
)

const subtitlesPath = "/ws/subtitles"

// ControllerLookup is the minimal controllers.Manager surface Handler
// needs to locate the MouthSync controller.
type ControllerLookup interface {
	ByName(name string) controllers.Controller
}

// mouthSyncController is the subset of MouthSync's public surface Handler
// drives directly.
type mouthSyncController interface {
	Execute(ctx context.Context, args any)
	IsRunning() bool
}

// SubtitleBroadcaster is the minimal websocket-hub surface Handler needs
// to push subtitle frames to connected clients.
type SubtitleBroadcaster interface {
	BroadcastToPath(path string, payload []byte)
}

// Player abstracts "decode the stream, play it, and report lifecycle and
// loudness" so Handler doesn't depend on a concrete audio backend — tests
// substitute one that never touches real audio hardware.
type Player interface {
	Play(ctx context.Context, src tts.AudioStream, onStarted func(), onLoudness func(db float64)) error
}

// Handler implements actionscheduler.Handler for "say" actions: it
// synthesizes speech, drives MouthSync from the decoded audio's loudness,
// and broadcasts subtitle frames, matching spec.md §4.6's two-case
// behavior (with vs. without tts_text).
type Handler struct {
	TTS         tts.Provider
	Controllers ControllerLookup
	Subtitles   SubtitleBroadcaster
	Player      Player

	logger *slog.Logger

	// mu serializes TTS runs: only one synthesis-and-playback may be in
	// flight at a time, per spec.md §4.6 step 1. The original creates a
	// fresh, never-contended asyncio.Lock() per call (a no-op); this
	// keeps the real mutual exclusion the spec actually calls for.
	mu sync.Mutex
}

// New creates a Handler. lookup and broadcaster may be nil in tests that
// exercise only the TTS-less path.
func New(provider tts.Provider, lookup ControllerLookup, broadcaster SubtitleBroadcaster) *Handler {
	return &Handler{
		TTS:         provider,
		Controllers: lookup,
		Subtitles:   broadcaster,
		Player:      newChunkPlayer(),
		logger:      log.L().With("component", "say_handler"),
	}
}

// Handle implements actionscheduler.Handler.
func (h *Handler) Handle(ctx context.Context, action actionscheduler.Action, ttsStart *actionscheduler.TTSLatch) error {
	var d actionscheduler.SayData
	if err := json.Unmarshal(action.Data, &d); err != nil {
		return err
	}

	if d.TTSText == "" {
		return h.handleSubtitleOnly(ctx, action, ttsStart)
	}
	return h.handleWithTTS(ctx, action, d, ttsStart)
}

// handleSubtitleOnly implements spec.md §4.6 Case B.
func (h *Handler) handleSubtitleOnly(ctx context.Context, action actionscheduler.Action, ttsStart *actionscheduler.TTSLatch) error {
	if ttsStart != nil {
		if err := ttsStart.Wait(ctx); err != nil {
			return err
		}
	}
	return h.broadcastAction(action)
}

// handleWithTTS implements spec.md §4.6 Case A.
func (h *Handler) handleWithTTS(ctx context.Context, action actionscheduler.Action, d actionscheduler.SayData, ttsStart *actionscheduler.TTSLatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.TTS == nil {
		return fmt.Errorf("sayhandler: no TTS provider configured")
	}

	mouthSync, loudness := h.startMouthSync(ctx)
	endLoudness := sync.OnceFunc(func() {
		if loudness != nil {
			loudness <- controllers.LoudnessSample{Done: true}
		}
	})
	defer endLoudness()

	stream, err := h.TTS.Stream(ctx, d.TTSText)
	if err != nil {
		h.logger.Error("TTS synthesis failed before playback began", "error", err)
		return err
	}
	defer stream.Close()

	started := make(chan struct{})
	var startOnce sync.Once
	finished := make(chan error, 1)

	go func() {
		finished <- h.Player.Play(ctx, stream,
			func() { startOnce.Do(func() { close(started) }) },
			func(db float64) { pushLoudness(loudness, db) },
		)
	}()

	select {
	case <-started:
		// audio began playing; fall through
	case err := <-finished:
		// stream ended or errored before a single sample played
		h.logger.Error("TTS playback failed to start", "error", err)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	if ttsStart != nil && !ttsStart.IsSet() {
		ttsStart.Set()
	}

	if err := h.broadcastAction(action); err != nil {
		h.logger.Warn("broadcasting subtitle failed", "error", err)
	}

	playbackErr := <-finished
	h.broadcastFinished()
	endLoudness()

	if mouthSync != nil {
		h.awaitMouthSyncStop(ctx, mouthSync)
	}

	return playbackErr
}

// awaitMouthSyncStop polls IsRunning until MouthSync has processed the
// end-of-stream sentinel and finished its closing tween, or ctx ends.
func (h *Handler) awaitMouthSyncStop(ctx context.Context, ms mouthSyncController) {
	for ms.IsRunning() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func pushLoudness(ch chan controllers.LoudnessSample, db float64) {
	if ch == nil {
		return
	}
	select {
	case ch <- controllers.LoudnessSample{Loudness: db}:
	default:
		// full: drop the oldest sample to make room for the freshest one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- controllers.LoudnessSample{Loudness: db}:
		default:
		}
	}
}

func (h *Handler) startMouthSync(ctx context.Context) (mouthSyncController, chan controllers.LoudnessSample) {
	if h.Controllers == nil {
		return nil, nil
	}
	ctrl := h.Controllers.ByName("MouthSync")
	if ctrl == nil {
		h.logger.Warn("MouthSync controller not registered, skipping lip sync")
		return nil, nil
	}
	ms, ok := ctrl.(mouthSyncController)
	if !ok {
		h.logger.Error("controller named MouthSync does not implement the expected interface")
		return nil, nil
	}
	feed := make(chan controllers.LoudnessSample, 1)
	var feedOnly <-chan controllers.LoudnessSample = feed
	ms.Execute(ctx, feedOnly)
	return ms, feed
}

func (h *Handler) broadcastAction(action actionscheduler.Action) error {
	if h.Subtitles == nil {
		return nil
	}
	payload, err := json.Marshal(action)
	if err != nil {
		return err
	}
	h.Subtitles.BroadcastToPath(subtitlesPath, payload)
	return nil
}

func (h *Handler) broadcastFinished() {
	if h.Subtitles == nil {
		return
	}
	h.Subtitles.BroadcastToPath(subtitlesPath, []byte(`{"type":"finished"}`))
}

var _ actionscheduler.Handler = (*Handler)(nil)
