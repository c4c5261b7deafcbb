// Command animctl is the single executable spec.md describes: one process,
// one HTTP/WS port, driving a 2-D avatar host from queued actions, idle
// controllers, and an optional live chat bridge. Flags and environment
// variables only layer startup overrides onto the on-disk config; the
// bulk of configuration lives in data/config.yaml and data/configs/*.yaml,
// owned by internal/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/nekro-live/animctl/internal/config"
	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/chat"
	"github.com/nekro-live/animctl/pkg/server"
	"github.com/nekro-live/animctl/pkg/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dataDir  = flag.String("data-dir", envOr("ANIMCTL_DATA_DIR", "data"), "directory holding config.yaml, configs/, templates/, sounds/")
		listen   = flag.String("listen", os.Getenv("ANIMCTL_LISTEN_ADDR"), "override the HTTP/WS listen address, e.g. :8000")
		endpoint = flag.String("avatar-endpoint", os.Getenv("ANIMCTL_AVATAR_ENDPOINT"), "override the avatar host websocket endpoint")
		logLevel = flag.String("log-level", envOr("ANIMCTL_LOG_LEVEL", "info"), "debug|info|warn|error")
	)
	flag.Parse()

	log.Init(*logLevel)
	logger := log.L().With("component", "main")

	store := config.NewStore(*dataDir)
	global, err := store.LoadGlobal()
	if err != nil {
		logger.Error("loading global config failed", "error", err)
		return 1
	}
	if *listen != "" {
		global.Apply(config.WithListenAddr(*listen))
	}
	if *endpoint != "" {
		global.Apply(config.WithAvatarEndpoint(*endpoint))
	}
	if err := store.SaveGlobal(global); err != nil {
		logger.Warn("persisting startup config overrides failed", "error", err)
	}

	provider := buildTTSProvider(global.TTS, logger)

	app := server.New(store, server.Options{
		Dirs: server.Dirs{
			Templates: filepath.Join(*dataDir, "templates"),
			Sounds:    filepath.Join(*dataDir, "sounds"),
			Static:    global.HTTP.StaticDir,
		},
		TTS:        provider,
		ChatSource: buildChatSource(global.Chat, store, logger),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}

	runErr := app.Run(ctx)
	app.Shutdown()

	if runErr != nil && ctx.Err() == nil {
		logger.Error("server exited with error", "error", runErr)
		return 1
	}
	logger.Info("exited cleanly")
	return 0
}

// buildTTSProvider constructs the say handler's synthesis backend. A nil
// return just means "say" actions without tts_text keep working while
// tts_text ones fail at dispatch time — not a startup-fatal condition,
// since TTS is a convenience on top of the animation control surface.
func buildTTSProvider(cfg config.TTSConfig, logger *slog.Logger) tts.Provider {
	if cfg.BaseURL == "" {
		logger.Warn("no TTS base URL configured, say actions carrying tts_text will fail")
		return nil
	}
	provider, err := tts.NewVITSSimpleAPI(
		tts.WithBaseURL(cfg.BaseURL),
		tts.WithVoice(cfg.VoiceID),
		tts.WithModel(cfg.ModelID),
		tts.WithLanguage(cfg.Language),
		tts.WithLogger(logger.With("component", "tts")),
	)
	if err != nil {
		logger.Error("constructing TTS provider failed, say actions carrying tts_text will fail", "error", err)
		return nil
	}
	return provider
}

// buildChatSource wires the live chat bridge's only currently supported
// platform. A disabled or malformed room configuration disables the
// bridge rather than failing startup, matching spec.md's treatment of
// chat as an optional integration.
func buildChatSource(cfg config.ChatConfig, store *config.Store, logger *slog.Logger) chat.Source {
	if !cfg.Enabled {
		return nil
	}
	roomID, err := strconv.ParseInt(cfg.Room, 10, 64)
	if err != nil {
		logger.Warn("chat enabled but room id is not numeric, disabling chat bridge", "room", cfg.Room, "error", err)
		return nil
	}
	return chat.NewBilibiliSource(roomID, &chatCredentialStore{store: store})
}

// chatCredentialStore adapts internal/config.Store's global ChatConfig.Credential
// field to chat.CredentialStore, so a refreshed session persists across
// restarts the same way a refreshed avatar auth token does.
type chatCredentialStore struct {
	store *config.Store
}

func (s *chatCredentialStore) LoadCredential() (string, error) {
	g, err := s.store.LoadGlobal()
	if err != nil {
		return "", err
	}
	return g.Chat.Credential, nil
}

func (s *chatCredentialStore) SaveCredential(raw string) error {
	g, err := s.store.LoadGlobal()
	if err != nil {
		return fmt.Errorf("chat credential store: %w", err)
	}
	g.Chat.Credential = raw
	return s.store.SaveGlobal(g)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
