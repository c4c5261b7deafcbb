package tweener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nekro-live/animctl/pkg/easing"
)

const floatTolerance = 1e-6

func floatEquals(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < floatTolerance
}

// mockSetter records every parameter write for inspection.
type mockSetter struct {
	mu    sync.Mutex
	calls []struct {
		name  string
		value float64
	}
}

func (m *mockSetter) SetParameterValue(_ context.Context, name string, value float64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, struct {
		name  string
		value float64
	}{name, value})
	return nil
}

func (m *mockSetter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSetter) lastValue(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].name == name {
			return m.calls[i].value, true
		}
	}
	return 0, false
}

func TestTween_FastPathSetsImmediately(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	tw.Tween(context.Background(), "EyeOpenLeft", 0.5, 0, easing.Linear)

	v, ok := tw.Value("EyeOpenLeft")
	if !ok || !floatEquals(v, 0.5) {
		t.Fatalf("expected committed value 0.5, got %v (ok=%v)", v, ok)
	}
	if got, _ := m.lastValue("EyeOpenLeft"); !floatEquals(got, 0.5) {
		t.Fatalf("expected setter call with 0.5, got %v", got)
	}
}

func TestTween_FastPathWhenStartEqualsEnd(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	tw.Tween(context.Background(), "FaceAngleX", 0, 1.0, easing.Linear, WithStart(0))

	if m.callCount() != 1 {
		t.Fatalf("expected exactly one immediate write, got %d", m.callCount())
	}
}

func TestTween_SlowPathReachesEndValue(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	tw.Tween(context.Background(), "FaceAngleY", 3.0, 0.05, easing.Linear, WithStart(0), WithFPS(60))

	v, ok := tw.Value("FaceAngleY")
	if !ok || !floatEquals(v, 3.0) {
		t.Fatalf("expected final value 3.0, got %v (ok=%v)", v, ok)
	}
	if m.callCount() < 2 {
		t.Fatalf("expected multiple stepped writes, got %d", m.callCount())
	}
}

func TestTween_EqualPriorityIsRejected(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tw.Tween(context.Background(), "FaceAngleZ", 10, 0.1, easing.Linear, WithStart(0), WithPriority(1))
	}()
	time.Sleep(10 * time.Millisecond)

	// Same priority must be rejected outright — the low-priority tween
	// keeps running uninterrupted.
	tw.Tween(context.Background(), "FaceAngleZ", -10, 0.01, easing.Linear, WithStart(0), WithPriority(1))

	wg.Wait()

	v, _ := tw.Value("FaceAngleZ")
	if !floatEquals(v, 10) {
		t.Fatalf("expected the original priority-1 tween to finish at 10, got %v", v)
	}
}

func TestTween_HigherPriorityPreemptsAndWinsFinalValue(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tw.Tween(context.Background(), "MouthOpen", 1.0, 0.2, easing.Linear, WithStart(0), WithPriority(1))
	}()
	time.Sleep(20 * time.Millisecond)

	tw.Tween(context.Background(), "MouthOpen", 0.0, 0.02, easing.Linear, WithStart(0), WithPriority(2))

	wg.Wait()

	v, _ := tw.Value("MouthOpen")
	if !floatEquals(v, 0.0) {
		t.Fatalf("expected the higher-priority tween's end value 0.0 to win, got %v", v)
	}
}

func TestReleaseAll_ClearsValuesButLeavesInFlightTweensRunning(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)

	done := make(chan struct{})
	go func() {
		tw.Tween(context.Background(), "EyeOpenRight", 1.0, 0.06, easing.Linear, WithStart(0))
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	tw.ReleaseAll()
	if _, ok := tw.Value("EyeOpenRight"); ok {
		t.Fatal("expected ReleaseAll to clear the committed value map")
	}

	<-done
	// The in-flight tween keeps writing after release; it is not cancelled.
	if m.callCount() == 0 {
		t.Fatal("expected the in-flight tween to keep running to completion")
	}
}

func TestKeepAlive_RefreshesOnlyUnheldParameters(t *testing.T) {
	m := &mockSetter{}
	tw := New(m)
	tw.keepAliveInterval = 15 * time.Millisecond

	tw.Tween(context.Background(), "Held", 5, 0, easing.Linear)

	started := make(chan struct{})
	go func() {
		close(started)
		tw.Tween(context.Background(), "InFlight", 1, 0.2, easing.Linear, WithStart(0), WithPriority(1))
	}()
	<-started

	tw.Start()
	defer tw.Stop()

	time.Sleep(60 * time.Millisecond)

	count, _ := m.lastValue("Held")
	if !floatEquals(count, 5) {
		t.Fatalf("expected keep-alive to keep refreshing Held at 5, got %v", count)
	}
}
