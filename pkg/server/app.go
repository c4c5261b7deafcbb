// Package server is animctl's composition root: it wires the avatar
// client, tweener, controllers, action scheduler, template player, TTS/
// say handler, audio player, chat bridge, and websocket hub together and
// drives the startup/shutdown sequence over HTTP via gofiber. Grounded on
// the lifecycle shape of the teacher's former cmd/eva entrypoint
// (Init/Run/Shutdown), generalized from a robot driver to this server's
// components.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/nekro-live/animctl/internal/config"
	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/actionscheduler"
	"github.com/nekro-live/animctl/pkg/audioplayer"
	"github.com/nekro-live/animctl/pkg/avatarclient"
	"github.com/nekro-live/animctl/pkg/chat"
	"github.com/nekro-live/animctl/pkg/controllers"
	"github.com/nekro-live/animctl/pkg/sayhandler"
	"github.com/nekro-live/animctl/pkg/templates"
	"github.com/nekro-live/animctl/pkg/tts"
	"github.com/nekro-live/animctl/pkg/tweener"
	"github.com/nekro-live/animctl/pkg/wshub"
)

// Dirs locates the on-disk resources Init wires up, relative to or
// alongside the config store's own directory.
type Dirs struct {
	Templates string
	Sounds    string
	Static    string
}

// Options are the pieces of an App that must be built outside this
// package, since they depend on flags/credentials only main() has
// (which TTS backend, whether a chat source is configured).
type Options struct {
	Dirs Dirs

	// TTS is the synthesis backend for "say" actions carrying tts_text.
	// Nil disables synthesis; say actions without tts_text still work.
	TTS tts.Provider

	// ChatSource streams external chat events. Nil disables the chat
	// bridge entirely.
	ChatSource chat.Source
}

// App owns every long-lived component and the fiber HTTP/WS server.
// Init/Run/Shutdown must be called in that order, matching the teacher's
// App lifecycle convention.
type App struct {
	store *config.Store
	opts  Options

	logger *slog.Logger

	avatar    *avatarclient.Client
	tweener   *tweener.Tweener
	manager   *controllers.Manager
	scheduler *actionscheduler.Scheduler
	templates *templates.Player
	sounds    *audioplayer.Player
	soundReg  *audioplayer.Registry
	say       *sayhandler.Handler
	hub       *wshub.Hub

	chatBridge *chat.Bridge
	chatCancel context.CancelFunc

	fiber *fiber.App

	cfgMu     sync.RWMutex
	global    config.Global
	modelName string
	ctrlCfg   controllers.Config
}

// New creates an App backed by store, not yet initialized.
func New(store *config.Store, opts Options) *App {
	return &App{
		store:  store,
		opts:   opts,
		logger: log.L().With("component", "server"),
		hub:    wshub.New(),
	}
}

// Init performs spec's fixed startup sequence: connect and authenticate
// against the avatar host (fatal on failure), load the matching per-model
// config, persist the refreshed token, start the keep-alive loop, register
// controllers, and start idle controllers plus the chat bridge in the
// background. It does not yet accept HTTP/WS traffic; call Run for that.
func (a *App) Init(ctx context.Context) error {
	global, err := a.store.LoadGlobal()
	if err != nil {
		return fmt.Errorf("server: loading global config: %w", err)
	}

	a.avatar = avatarclient.New(global.Avatar.Endpoint, global.Avatar.PluginName, global.Avatar.PluginDeveloper)
	token, ok, err := a.avatar.ConnectAndAuthenticate(ctx, global.Avatar.AuthToken)
	if err != nil || !ok {
		return fmt.Errorf("server: avatar connect/authenticate failed: %w", err)
	}
	global.Avatar.AuthToken = token

	model, err := a.avatar.CurrentModel(ctx)
	if err != nil {
		a.avatar.Disconnect()
		return fmt.Errorf("server: reading current model: %w", err)
	}
	modelName := model.ModelName
	if modelName == "" {
		modelName = "default"
	}

	ctrlCfg, err := a.store.LoadModelConfig(modelName)
	if err != nil {
		a.avatar.Disconnect()
		return fmt.Errorf("server: loading model config for %q: %w", modelName, err)
	}

	if err := a.store.SaveGlobal(global); err != nil {
		a.logger.Error("persisting refreshed auth token failed", "error", err)
	}

	a.cfgMu.Lock()
	a.global = global
	a.modelName = modelName
	a.ctrlCfg = ctrlCfg
	a.cfgMu.Unlock()

	a.tweener = tweener.New(a.avatar)
	a.tweener.Start()

	a.buildControllers()

	a.sounds = audioplayer.New(a.opts.Dirs.Sounds)
	a.soundReg = audioplayer.NewRegistry(a.opts.Dirs.Sounds)
	a.say = sayhandler.New(a.opts.TTS, a.manager, a.hub)

	a.scheduler = actionscheduler.New(map[actionscheduler.Type]actionscheduler.Handler{
		actionscheduler.TypeAnimation:  &actionscheduler.AnimationHandler{Tweener: a.tweener},
		actionscheduler.TypeExpression: &actionscheduler.ExpressionHandler{Client: a.avatar},
		actionscheduler.TypeSoundPlay:  &actionscheduler.SoundPlayHandler{Player: a.sounds},
		actionscheduler.TypeSay:        a.say,
	})
	a.templates = templates.New(a.opts.Dirs.Templates, a.scheduler)

	go a.manager.StartAllIdle()

	if a.opts.ChatSource != nil {
		chatCtx, cancel := context.WithCancel(context.Background())
		a.chatCancel = cancel
		a.chatBridge = chat.New(a.opts.ChatSource, a.hub)
		go a.chatBridge.Run(chatCtx)
	}

	a.fiber = a.buildFiberApp()
	return nil
}

// buildControllers constructs every idle and one-shot controller over the
// loaded per-model config and registers them with a fresh Manager.
func (a *App) buildControllers() {
	a.manager = controllers.NewManager()

	a.manager.Register(controllers.NewBlink(a.tweener, a.blinkConfig), a.ctrlCfg.Blink.Enabled)
	a.manager.Register(controllers.NewBreathing(a.tweener, a.breathingConfig), a.ctrlCfg.Breathing.Enabled)
	a.manager.Register(controllers.NewBodySwing(a.tweener, a.bodySwingConfig, a.eyeFollowConfig), a.ctrlCfg.BodySwing.Enabled)
	a.manager.Register(controllers.NewMouthExpression(a.tweener, a.mouthExpressionConfig), a.ctrlCfg.MouthExpression.Enabled)

	a.manager.RegisterOneShot(controllers.NewMouthSync(a.tweener, a.mouthSyncConfig), a.ctrlCfg.MouthSync.Enabled)
	a.manager.RegisterOneShot(controllers.NewExpressionApply(a.avatar, a.expressionApplyConfig), a.ctrlCfg.ExpressionApply.Enabled)
}

func (a *App) blinkConfig() controllers.BlinkConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.Blink
}

func (a *App) breathingConfig() controllers.BreathingConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.Breathing
}

func (a *App) bodySwingConfig() controllers.BodySwingConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.BodySwing
}

func (a *App) eyeFollowConfig() controllers.EyeFollowConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.EyeFollow
}

func (a *App) mouthExpressionConfig() controllers.MouthExpressionConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.MouthExpression
}

func (a *App) mouthSyncConfig() controllers.MouthSyncConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.MouthSync
}

func (a *App) expressionApplyConfig() controllers.ExpressionApplyConfig {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.ctrlCfg.ExpressionApply
}

// Run begins accepting HTTP/WebSocket traffic on listenAddr and blocks
// until ctx is cancelled, at which point it shuts the fiber server down
// gracefully and returns.
func (a *App) Run(ctx context.Context) error {
	a.cfgMu.RLock()
	addr := a.global.HTTP.ListenAddr
	a.cfgMu.RUnlock()

	errCh := make(chan error, 1)
	go func() { errCh <- a.fiber.Listen(addr) }()

	select {
	case <-ctx.Done():
		return a.fiber.ShutdownWithContext(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown runs spec's reverse shutdown sequence: persist config, stop
// idle controllers without waiting, release and stop the tweener, then
// disconnect the avatar client.
func (a *App) Shutdown() {
	a.cfgMu.RLock()
	global := a.global
	a.cfgMu.RUnlock()

	if err := a.store.SaveGlobal(global); err != nil {
		a.logger.Error("saving global config at shutdown failed", "error", err)
	}
	if a.chatCancel != nil {
		a.chatCancel()
	}
	if a.manager != nil {
		a.manager.StopAllIdle()
	}
	if a.tweener != nil {
		a.tweener.ReleaseAll()
		a.tweener.Stop()
	}
	if a.avatar != nil {
		a.avatar.Disconnect()
	}
	a.logger.Info("shutdown complete")
}
