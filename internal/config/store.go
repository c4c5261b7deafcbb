package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nekro-live/animctl/pkg/controllers"
)

// defaultModelName is the per-model config file used when no file matches
// the avatar's currently loaded model.
const defaultModelName = "default"

// Store owns reading and writing both configuration layers under a single
// base data directory: <dir>/config.yaml (Global) and
// <dir>/configs/<model>.yaml (per-model controllers.Config).
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir (spec.md's "data/" directory).
func NewStore(dir string) *Store {
	return &Store{dir: dir, logger: componentLogger()}
}

func (s *Store) globalPath() string {
	return filepath.Join(s.dir, "config.yaml")
}

func (s *Store) modelConfigPath(modelName string) string {
	return filepath.Join(s.dir, "configs", modelName+".yaml")
}

// LoadGlobal reads data/config.yaml. A missing file is not an error: it
// returns DefaultGlobal() so first-run startup can proceed and the caller
// can persist it back with SaveGlobal once the avatar host confirms a
// fresh auth token.
func (s *Store) LoadGlobal() (Global, error) {
	raw, err := os.ReadFile(s.globalPath())
	if os.IsNotExist(err) {
		return DefaultGlobal(), nil
	}
	if err != nil {
		return Global{}, err
	}
	g := DefaultGlobal()
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return Global{}, err
	}
	return g, nil
}

// SaveGlobal writes g to data/config.yaml, creating the directory if
// needed.
func (s *Store) SaveGlobal(g Global) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(g)
	if err != nil {
		return err
	}
	return os.WriteFile(s.globalPath(), raw, 0o644)
}

// LoadModelConfig loads data/configs/<modelName>.yaml. If that file is
// absent it falls back to data/configs/default.yaml; if neither exists it
// starts from controllers.DefaultConfig() and persists the result to
// <modelName>.yaml immediately, so newly-added config keys (a config
// struct field added in a later release) always end up on disk for every
// model the avatar actually uses, matching spec.md §4.10 step 2's
// "load... or default, persist back so new keys appear."
func (s *Store) LoadModelConfig(modelName string) (controllers.Config, error) {
	cfg, found, err := s.readModelConfig(modelName)
	if err != nil {
		return controllers.Config{}, err
	}
	if found {
		return cfg, s.SaveModelConfig(modelName, cfg)
	}

	cfg, found, err = s.readModelConfig(defaultModelName)
	if err != nil {
		return controllers.Config{}, err
	}
	if !found {
		s.logger.Info("no per-model or default config found, starting from factory defaults", "model", modelName)
		cfg = controllers.DefaultConfig()
	} else {
		s.logger.Info("no config for model, falling back to default.yaml", "model", modelName)
	}
	return cfg, s.SaveModelConfig(modelName, cfg)
}

// readModelConfig reads and unmarshals one per-model file, reporting
// whether it existed. A present-but-incomplete file is merged onto
// controllers.DefaultConfig() so missing keys take their factory default
// rather than zero-valuing the whole section.
func (s *Store) readModelConfig(modelName string) (controllers.Config, bool, error) {
	raw, err := os.ReadFile(s.modelConfigPath(modelName))
	if os.IsNotExist(err) {
		return controllers.Config{}, false, nil
	}
	if err != nil {
		return controllers.Config{}, false, err
	}
	cfg := controllers.DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return controllers.Config{}, false, err
	}
	return cfg, true, nil
}

// SaveModelConfig writes cfg to data/configs/<modelName>.yaml.
func (s *Store) SaveModelConfig(modelName string, cfg controllers.Config) error {
	dir := filepath.Join(s.dir, "configs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(s.modelConfigPath(modelName), raw, 0o644)
}
