package controllers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nekro-live/animctl/internal/log"
)

// Controller is the lookup-by-name surface every controller exposes.
type Controller interface {
	Name() string
	IsRunning() bool
	Stop()
	StopWithoutWait()
}

// IdleControllerHandle is an idle controller's externally-visible control
// surface.
type IdleControllerHandle interface {
	Controller
	Start()
}

// OneShotControllerHandle is a one-shot controller's externally-visible
// control surface.
type OneShotControllerHandle interface {
	Controller
	Execute(ctx context.Context, args any)
}

// Manager registers, starts, pauses, and locates controllers by name. Go
// has no equivalent of the original's reflection-based auto-discovery
// (importlib/inspect over a package directory), so registration here is
// explicit — see Register/RegisterOneShot, called once at startup with
// the concrete controller set this server builds.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	idle    []IdleControllerHandle
	oneshot []OneShotControllerHandle
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{logger: log.L().With("component", "controller_manager")}
}

// Register adds an idle controller. A disabled controller (per its own
// config) is silently skipped, matching the original's
// register_controller's ENABLED check.
func (m *Manager) Register(c IdleControllerHandle, enabled bool) {
	if !enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle = append(m.idle, c)
}

// RegisterOneShot adds a one-shot controller, subject to the same
// enabled check.
func (m *Manager) RegisterOneShot(c OneShotControllerHandle, enabled bool) {
	if !enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneshot = append(m.oneshot, c)
}

// ByName looks up any registered controller (idle or one-shot) by its
// exact, case-sensitive name.
func (m *Manager) ByName(name string) Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.idle {
		if c.Name() == name {
			return c
		}
	}
	for _, c := range m.oneshot {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// StartAllIdle starts every registered idle controller that is not
// already running, concurrently.
func (m *Manager) StartAllIdle() {
	m.mu.Lock()
	idle := append([]IdleControllerHandle(nil), m.idle...)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range idle {
		if c.IsRunning() {
			continue
		}
		wg.Add(1)
		go func(c IdleControllerHandle) {
			defer wg.Done()
			c.Start()
		}(c)
	}
	wg.Wait()
	m.logger.Info("idle controllers started")
}

// PauseIdle is an alias for StopAllIdle, matching the original's naming
// (pause_idle == stop_all_idle, no distinct "pause" semantics exist).
func (m *Manager) PauseIdle() { m.StopAllIdle() }

// StopAllIdle cancels every running idle controller without waiting.
func (m *Manager) StopAllIdle() {
	m.mu.Lock()
	idle := append([]IdleControllerHandle(nil), m.idle...)
	m.mu.Unlock()

	for _, c := range idle {
		if c.IsRunning() {
			c.StopWithoutWait()
		}
	}
	m.logger.Info("stop signal sent to all idle controllers")
}

// ExecuteOneShot dispatches to a one-shot controller by name. A controller
// already running is skipped with a warning rather than queued.
func (m *Manager) ExecuteOneShot(ctx context.Context, name string, args any) {
	c := m.oneShotByName(name)
	if c == nil {
		m.logger.Warn("one-shot controller not found", "name", name)
		return
	}
	if c.IsRunning() {
		m.logger.Warn("one-shot controller already running, skipping", "name", name)
		return
	}
	c.Execute(ctx, args)
}

func (m *Manager) oneShotByName(name string) OneShotControllerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.oneshot {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// StopWithoutWait stops any controller (idle or one-shot) by name
// immediately.
func (m *Manager) StopWithoutWait(name string) {
	if c := m.ByName(name); c != nil {
		c.StopWithoutWait()
	} else {
		m.logger.Warn("controller not found", "name", name)
	}
}
