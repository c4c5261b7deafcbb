package actionscheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nekro-live/animctl/pkg/easing"
	"github.com/nekro-live/animctl/pkg/tweener"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []Action
	order []time.Time
}

func (h *recordingHandler) Handle(_ context.Context, a Action, _ *TTSLatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, a)
	h.order = append(h.order, time.Now())
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// gatingHandler plays both roles a "say" handler can take in one
// iteration: the TTS runner that sets the latch once its audio "starts",
// and the subtitle-only action that waits on it before proceeding.
type gatingHandler struct {
	saw chan bool
}

func (h *gatingHandler) Handle(ctx context.Context, a Action, latch *TTSLatch) error {
	var d SayData
	_ = json.Unmarshal(a.Data, &d)

	if d.TTSText != "" {
		if latch != nil {
			latch.Set()
		}
		return nil
	}

	if latch != nil {
		_ = latch.Wait(ctx)
		h.saw <- latch.IsSet()
	} else {
		h.saw <- false
	}
	return nil
}

type mockSetter struct {
	mu   sync.Mutex
	last map[string]float64
}

func (m *mockSetter) SetParameterValue(_ context.Context, name string, value float64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[string]float64)
	}
	m.last[name] = value
	return nil
}

func (m *mockSetter) value(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[name]
}

func mustAction(t *testing.T, typ Type, data any) Action {
	t.Helper()
	a, err := NewAction(typ, data)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	return a
}

func TestAddAction_ReturnsEstimatedCompletionTime(t *testing.T) {
	s := New(nil)

	anim := mustAction(t, TypeAnimation, AnimationData{Parameter: "X", Target: 1, Duration: 2, Delay: 0.5})
	if got := s.AddAction(anim); got != 2.5 {
		t.Fatalf("expected completion time 2.5, got %v", got)
	}

	say := mustAction(t, TypeSay, SayData{Text: "hi", TTSText: "hi"})
	if got := s.AddAction(say); got != 0 {
		t.Fatalf("expected say completion time 0, got %v", got)
	}
}

func TestExecuteQueue_SnapshotsAndClearsBeforeRunning(t *testing.T) {
	h := &recordingHandler{}
	s := New(map[Type]Handler{TypeSoundPlay: h})

	s.AddAction(mustAction(t, TypeSoundPlay, SoundPlayData{Path: "a.wav"}))
	s.ExecuteQueue(context.Background(), 0)

	if h.count() != 1 {
		t.Fatalf("expected 1 handler call, got %d", h.count())
	}
	// The queue was cleared by the snapshot, so a second execute with
	// nothing added runs zero actions.
	s.ExecuteQueue(context.Background(), 0)
	if h.count() != 1 {
		t.Fatalf("expected no further calls after an empty queue, got %d", h.count())
	}
}

func TestExecuteQueue_RunsLoopPlusOneIterations(t *testing.T) {
	h := &recordingHandler{}
	s := New(map[Type]Handler{TypeSoundPlay: h})

	s.AddAction(mustAction(t, TypeSoundPlay, SoundPlayData{Path: "a.wav"}))
	s.ExecuteQueue(context.Background(), 2)

	if h.count() != 3 {
		t.Fatalf("expected loop=2 to run 3 times, got %d", h.count())
	}
}

func TestExecuteQueue_NonTTSSayWaitsForLatch(t *testing.T) {
	gate := &gatingHandler{saw: make(chan bool, 1)}
	s := New(map[Type]Handler{TypeSay: gate})

	s.AddAction(mustAction(t, TypeSay, SayData{Text: "subtitle only"}))
	s.AddAction(mustAction(t, TypeSay, SayData{Text: "tts", TTSText: "hi"}))

	done := make(chan struct{})
	go func() {
		s.ExecuteQueue(context.Background(), 0)
		close(done)
	}()

	<-done
	select {
	case saw := <-gate.saw:
		if !saw {
			t.Fatal("expected the gated say action to observe the latch set")
		}
	default:
		t.Fatal("expected gatingHandler to have recorded a result")
	}
}

func TestAnimationHandler_DispatchesToTweener(t *testing.T) {
	m := &mockSetter{}
	tw := tweener.New(m)
	h := &AnimationHandler{Tweener: tw}

	a := mustAction(t, TypeAnimation, AnimationData{Parameter: "FaceAngleX", Target: 5, Duration: 0, Easing: "linear"})
	if err := h.Handle(context.Background(), a, nil); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if v := m.value("FaceAngleX"); v != 5 {
		t.Fatalf("expected tweener to have set FaceAngleX to 5, got %v", v)
	}
}

func TestAnimationHandler_UnknownEasingFallsBackToLinear(t *testing.T) {
	var raw json.RawMessage
	_ = raw
	fn, ok := easing.Lookup("not_a_real_easing")
	if ok {
		t.Fatal("expected Lookup to report the fallback fired")
	}
	if fn(0.5) != easing.Linear(0.5) {
		t.Fatal("expected the fallback to behave like Linear")
	}
}
