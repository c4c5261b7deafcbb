// Package config owns animctl's two-layer YAML configuration: a single
// global config (how to reach the avatar host, the TTS backend, and the
// live chat source) and a per-model ControllerConfig that is reloaded
// whenever the avatar switches models. Grounded on
// vts_model_control/configs/config.py's nested dataclass-plus-load/save
// shape, using the functional-options idiom pkg/tts/config.go establishes
// for constructing a Global with sensible defaults before any file exists.
package config

import (
	"log/slog"

	"github.com/nekro-live/animctl/internal/log"
)

// Global is the top-level configuration persisted at data/config.yaml.
type Global struct {
	Avatar AvatarConfig `yaml:"avatar"`
	HTTP   HTTPConfig   `yaml:"http"`
	TTS    TTSConfig    `yaml:"tts"`
	Chat   ChatConfig   `yaml:"chat"`
}

// AvatarConfig describes how to reach and authenticate against the avatar
// host's public API.
type AvatarConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AuthToken       string `yaml:"auth_token"`
	PluginName      string `yaml:"plugin_name"`
	PluginDeveloper string `yaml:"plugin_developer"`
}

// HTTPConfig describes the server's own listen address and static asset
// directory.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	StaticDir  string `yaml:"static_dir"`
}

// TTSConfig carries the subset of pkg/tts.Config that is worth persisting
// across restarts (credentials and voice selection); timeouts and retry
// policy stay code-side defaults.
type TTSConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	VoiceID  string `yaml:"voice_id"`
	ModelID  string `yaml:"model_id"`
	Language string `yaml:"language"`
}

// ChatConfig holds the live chat bridge's room and cached credential.
// Credential is opaque to this package: pkg/chat owns how it is
// interpreted (token, cookie jar, QR session) and refreshes it in place
// via Store.SaveGlobal when it renews.
type ChatConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Room       string `yaml:"room"`
	Credential string `yaml:"credential"`
}

// Option configures a Global in place via Apply, analogous to
// pkg/tts.Option — used by cmd/animctl to layer flag and environment-variable
// overrides onto the Global that Store.LoadGlobal returned (the on-disk
// data/config.yaml, or DefaultGlobal() when that file does not exist yet).
type Option func(*Global)

// WithAvatarEndpoint sets the avatar host's websocket endpoint.
func WithAvatarEndpoint(endpoint string) Option {
	return func(g *Global) { g.Avatar.Endpoint = endpoint }
}

// WithListenAddr sets the HTTP/WS listen address.
func WithListenAddr(addr string) Option {
	return func(g *Global) { g.HTTP.ListenAddr = addr }
}

// WithTTSProvider selects the TTS backend and its credentials.
func WithTTSProvider(provider, apiKey, baseURL, voiceID string) Option {
	return func(g *Global) {
		g.TTS.Provider = provider
		g.TTS.APIKey = apiKey
		g.TTS.BaseURL = baseURL
		g.TTS.VoiceID = voiceID
	}
}

// WithChatRoom enables the live chat bridge for the given room.
func WithChatRoom(room string) Option {
	return func(g *Global) {
		g.Chat.Enabled = room != ""
		g.Chat.Room = room
	}
}

// DefaultGlobal returns the factory defaults, written to data/config.yaml
// the first time the server starts with no existing file.
func DefaultGlobal() Global {
	return Global{
		Avatar: AvatarConfig{
			Endpoint:        "ws://localhost:8001",
			PluginName:      "animctl",
			PluginDeveloper: "nekro-live",
		},
		HTTP: HTTPConfig{
			ListenAddr: ":8000",
			StaticDir:  "static",
		},
		TTS: TTSConfig{
			Provider: "vits-simple-api",
			Language: "zh",
		},
		Chat: ChatConfig{
			Enabled: false,
		},
	}
}

// Apply applies opts on top of the receiver in place.
func (g *Global) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(g)
	}
}

// componentLogger is shared by Store's load/save operations.
func componentLogger() *slog.Logger {
	return log.L().With("component", "config_store")
}
