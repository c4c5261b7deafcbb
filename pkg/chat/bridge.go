package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nekro-live/animctl/internal/log"
)

// danmakuPath is the fixed websocket path chat events are broadcast to.
const danmakuPath = "/ws/danmaku"

// reconnectDelay is how long Bridge waits before retrying a dropped
// connection, matching the original's fixed 5s backoff.
const reconnectDelay = 5 * time.Second

// DefaultBatchSize and DefaultBatchWindow are danmaku's count- and
// time-based flush triggers: whichever condition is met first flushes the
// queue, marking only the last queued message as the trigger (spec.md
// §4.8, tested by §8 scenarios S5 and S6).
const (
	DefaultBatchSize   = 5
	DefaultBatchWindow = 10 * time.Second
)

// Source streams raw chat events from an external live platform. Run
// blocks until ctx is cancelled (returning nil) or the connection drops
// (returning a non-nil error); Bridge reconnects after reconnectDelay.
type Source interface {
	Run(ctx context.Context, events chan<- RawEvent) error
}

// Broadcaster is the minimal wshub surface Bridge needs.
type Broadcaster interface {
	BroadcastJSONToPath(path string, v any)
}

// Bridge batches danmaku, relays interact/super-chat/gift events
// immediately, and reconnects its Source on failure.
type Bridge struct {
	source      Source
	broadcaster Broadcaster
	logger      *slog.Logger

	batchSize   int
	batchWindow time.Duration

	mu    sync.Mutex
	queue []Message
	timer *time.Timer
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithBatchSize overrides the count threshold that flushes the danmaku
// queue immediately. Default DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(b *Bridge) { b.batchSize = n }
}

// WithBatchWindow overrides how long an only-partially-full danmaku queue
// waits before flushing anyway. Default DefaultBatchWindow.
func WithBatchWindow(d time.Duration) Option {
	return func(b *Bridge) { b.batchWindow = d }
}

// New creates a Bridge over source, broadcasting normalized messages
// through broadcaster.
func New(source Source, broadcaster Broadcaster, opts ...Option) *Bridge {
	b := &Bridge{
		source:      source,
		broadcaster: broadcaster,
		logger:      log.L().With("component", "chat_bridge"),
		batchSize:   DefaultBatchSize,
		batchWindow: DefaultBatchWindow,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run connects to source and processes events until ctx is cancelled,
// reconnecting after reconnectDelay whenever the connection drops.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		events := make(chan RawEvent, 32)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- b.source.Run(runCtx, events) }()

		b.consume(runCtx, events, done)
		cancel()

		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("chat source connection lost, reconnecting", "delay", reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consume drains events and dispatches them until the source's Run
// returns or ctx is cancelled.
func (b *Bridge) consume(ctx context.Context, events <-chan RawEvent, done <-chan error) {
	for {
		select {
		case ev := <-events:
			b.handle(ev)
		case err := <-done:
			if err != nil {
				b.logger.Error("chat source disconnected", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// handle routes one raw event: danmaku is queued for batching, every other
// kind is relayed immediately with its fixed system/trigger flags —
// interact never triggers a reaction, super-chat and gifts always do.
func (b *Bridge) handle(ev RawEvent) {
	switch ev.Kind {
	case EventDanmaku:
		b.enqueueDanmaku(toMessage(ev, false, false))
	case EventInteract:
		b.broadcaster.BroadcastJSONToPath(danmakuPath, toMessage(ev, true, false))
	case EventSuperChat, EventGift:
		b.broadcaster.BroadcastJSONToPath(danmakuPath, toMessage(ev, true, true))
	default:
		b.logger.Warn("dropping chat event of unknown kind", "kind", int(ev.Kind))
	}
}

func toMessage(ev RawEvent, isSystem, isTrigger bool) Message {
	return Message{
		Room:      ev.Room,
		UID:       ev.UID,
		Username:  ev.Username,
		Text:      ev.Text,
		Timestamp: ev.Timestamp,
		ImageURLs: ev.ImageURLs,
		IsSystem:  isSystem,
		IsTrigger: isTrigger,
	}
}

// enqueueDanmaku queues msg and flushes immediately once the count
// threshold is reached; otherwise it arms a batchWindow timer (only once,
// on the first queued message) that flushes on its own expiry. Whichever
// condition fires first wins.
func (b *Bridge) enqueueDanmaku(msg Message) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	full := len(b.queue) >= b.batchSize
	if full {
		b.stopTimerLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.batchWindow, b.flush)
	}
	b.mu.Unlock()

	if full {
		b.flush()
	}
}

func (b *Bridge) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// flush broadcasts every queued danmaku message in submission order,
// marking only the last one as the trigger — exactly one is_trigger=true
// per flushed batch, per spec.md §8 invariant 6.
func (b *Bridge) flush() {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.stopTimerLocked()
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	batch[len(batch)-1].IsTrigger = true
	for _, msg := range batch {
		b.broadcaster.BroadcastJSONToPath(danmakuPath, msg)
	}
}
