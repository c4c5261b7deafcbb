package wshub

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	failing bool
	closed  bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("write failed")
	}
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestConnectAndCount(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Connect("/ws/danmaku", a)
	h.Connect("/ws/danmaku", b)
	if got := h.Count("/ws/danmaku"); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if got := h.Count("/ws/subtitles"); got != 0 {
		t.Fatalf("expected 0 connections on an untouched path, got %d", got)
	}
}

func TestDisconnectRemovesOnlyThatConnection(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Connect("/ws/danmaku", a)
	h.Connect("/ws/danmaku", b)
	h.Disconnect("/ws/danmaku", a)
	if got := h.Count("/ws/danmaku"); got != 1 {
		t.Fatalf("expected 1 connection remaining, got %d", got)
	}

	h.BroadcastToPath("/ws/danmaku", []byte("hi"))
	if a.writeCount() != 0 {
		t.Fatal("expected the disconnected connection to receive nothing")
	}
	if b.writeCount() != 1 {
		t.Fatal("expected the remaining connection to receive the broadcast")
	}
}

func TestBroadcastToPathDoesNotTouchOtherPaths(t *testing.T) {
	h := New()
	control, danmaku := &fakeConn{}, &fakeConn{}
	h.Connect("/ws/animate_control", control)
	h.Connect("/ws/danmaku", danmaku)

	h.BroadcastToPath("/ws/danmaku", []byte("chat"))

	if control.writeCount() != 0 {
		t.Fatal("expected the control path to receive nothing from a danmaku broadcast")
	}
	if danmaku.writeCount() != 1 {
		t.Fatal("expected the danmaku connection to receive the broadcast")
	}
}

func TestBroadcastPrunesFailedConnectionsAndKeepsGood(t *testing.T) {
	h := New()
	good, bad := &fakeConn{}, &fakeConn{failing: true}
	h.Connect("/ws/subtitles", good)
	h.Connect("/ws/subtitles", bad)

	h.BroadcastToPath("/ws/subtitles", []byte("frame-1"))

	if got := h.Count("/ws/subtitles"); got != 1 {
		t.Fatalf("expected the failed connection to be pruned, got count %d", got)
	}
	if good.writeCount() != 1 {
		t.Fatal("expected the good connection to have received the broadcast")
	}

	// A second broadcast must still reach the surviving connection.
	h.BroadcastToPath("/ws/subtitles", []byte("frame-2"))
	if good.writeCount() != 2 {
		t.Fatal("expected the surviving connection to keep receiving broadcasts")
	}
}

func TestBroadcastToEmptyPathIsANoOp(t *testing.T) {
	h := New()
	h.BroadcastToPath("/ws/danmaku", []byte("nobody listening"))
	if got := h.Count("/ws/danmaku"); got != 0 {
		t.Fatalf("expected no connections to have been created, got %d", got)
	}
}

type jsonPayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

func TestBroadcastJSONToPathMarshalsAndSends(t *testing.T) {
	h := New()
	c := &fakeConn{}
	h.Connect("/ws/danmaku", c)

	h.BroadcastJSONToPath("/ws/danmaku", jsonPayload{Room: "123", Text: "hello"})

	if c.writeCount() != 1 {
		t.Fatalf("expected exactly one write, got %d", c.writeCount())
	}
	want := `{"room":"123","text":"hello"}`
	if got := string(c.writes[0]); got != want {
		t.Fatalf("unexpected JSON payload: got %q, want %q", got, want)
	}
}
