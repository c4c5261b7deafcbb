// Package wshub fans out server-to-client broadcasts across the three fixed
// websocket paths (/ws/animate_control, /ws/danmaku, /ws/subtitles). Replies
// to control frames are written by pkg/server directly on the socket the
// frame arrived on; the hub itself only broadcasts. Grounded on
// services/websocket_manager.py's WebSocketManager.
package wshub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/nekro-live/animctl/internal/log"
)

// Conn is the minimal surface Hub needs from a connection: a single
// concurrency-safe write and a close. *websocket.Conn (gofiber/websocket)
// satisfies this directly; tests substitute a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub tracks every open connection per path and broadcasts to them. One
// mutex guards the per-path connection lists; broadcasts snapshot the list
// under the lock and send without holding it, reacquiring only to prune
// connections whose send failed — so the lock is never held across network
// I/O, though a slow client still delays the broadcast that writes to it.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string][]Conn
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		logger: log.L().With("component", "wshub"),
		conns:  make(map[string][]Conn),
	}
}

// Connect registers c as open on path.
func (h *Hub) Connect(path string, c Conn) {
	h.mu.Lock()
	h.conns[path] = append(h.conns[path], c)
	n := len(h.conns[path])
	h.mu.Unlock()
	h.logger.Debug("client connected", "path", path, "count", n)
}

// Disconnect removes c from path's list, if present. It does not close c.
func (h *Hub) Disconnect(path string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.conns[path]
	for i, existing := range list {
		if existing == c {
			h.conns[path] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.conns[path]) == 0 {
		delete(h.conns, path)
	}
}

// Count reports how many connections are currently open on path.
func (h *Hub) Count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[path])
}

// snapshot copies path's current connection list under the lock.
func (h *Hub) snapshot(path string) []Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.conns[path]
	if len(list) == 0 {
		return nil
	}
	out := make([]Conn, len(list))
	copy(out, list)
	return out
}

// BroadcastToPath sends payload to every connection on path, concurrently
// and without holding the lock, then prunes any connection whose send
// failed. Implements sayhandler.SubtitleBroadcaster.
func (h *Hub) BroadcastToPath(path string, payload []byte) {
	list := h.snapshot(path)
	if len(list) == 0 {
		return
	}

	failed := make([]Conn, 0)
	var failedMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(list))
	for _, c := range list {
		c := c
		go func() {
			defer wg.Done()
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				failedMu.Lock()
				failed = append(failed, c)
				failedMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, bad := range failed {
		list := h.conns[path]
		for i, existing := range list {
			if existing == bad {
				h.conns[path] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	if len(h.conns[path]) == 0 {
		delete(h.conns, path)
	}
	h.mu.Unlock()
	h.logger.Debug("pruned dead connections", "path", path, "count", len(failed))
}

// BroadcastJSONToPath marshals v and broadcasts it to path. Marshal
// failures are logged and nothing is sent.
func (h *Hub) BroadcastJSONToPath(path string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshaling broadcast payload failed", "path", path, "error", err)
		return
	}
	h.BroadcastToPath(path, payload)
}

var _ interface {
	BroadcastToPath(path string, payload []byte)
} = (*Hub)(nil)
