package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nekro-live/animctl/pkg/controllers"
)

func TestLoadGlobal_MissingFileReturnsDefaults(t *testing.T) {
	s := NewStore(t.TempDir())
	g, err := s.LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Avatar.Endpoint != DefaultGlobal().Avatar.Endpoint {
		t.Fatalf("expected default endpoint, got %q", g.Avatar.Endpoint)
	}
}

func TestSaveThenLoadGlobal_RoundTrips(t *testing.T) {
	s := NewStore(t.TempDir())
	g := DefaultGlobal()
	g.Apply(WithAvatarEndpoint("ws://example:1234"), WithChatRoom("12345"))
	g.Avatar.AuthToken = "abc-123"

	if err := s.SaveGlobal(g); err != nil {
		t.Fatalf("SaveGlobal: %v", err)
	}
	got, err := s.LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if got != g {
		t.Fatalf("round-tripped config differs:\n got  %+v\n want %+v", got, g)
	}
}

func TestLoadModelConfig_NoFilesFallsBackToFactoryDefaultsAndPersists(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	cfg, err := s.LoadModelConfig("hiyori")
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, controllers.DefaultConfig()) {
		t.Fatalf("expected factory defaults for an unknown model")
	}

	if _, err := os.Stat(filepath.Join(dir, "configs", "hiyori.yaml")); err != nil {
		t.Fatalf("expected hiyori.yaml to be persisted: %v", err)
	}
}

func TestLoadModelConfig_FallsBackToDefaultYAML(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	defaultCfg := controllers.DefaultConfig()
	defaultCfg.Blink.MinInterval = 9.5
	if err := s.SaveModelConfig("default", defaultCfg); err != nil {
		t.Fatalf("seeding default.yaml: %v", err)
	}

	cfg, err := s.LoadModelConfig("some_new_model")
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if cfg.Blink.MinInterval != 9.5 {
		t.Fatalf("expected the default.yaml value to carry over, got %v", cfg.Blink.MinInterval)
	}

	if _, err := os.Stat(filepath.Join(dir, "configs", "some_new_model.yaml")); err != nil {
		t.Fatalf("expected some_new_model.yaml to be persisted: %v", err)
	}
}

func TestLoadModelConfig_PrefersModelSpecificOverDefault(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.SaveModelConfig("default", controllers.DefaultConfig()); err != nil {
		t.Fatalf("seeding default.yaml: %v", err)
	}
	specific := controllers.DefaultConfig()
	specific.Breathing.Parameter = "CustomParam"
	if err := s.SaveModelConfig("hiyori", specific); err != nil {
		t.Fatalf("seeding hiyori.yaml: %v", err)
	}

	cfg, err := s.LoadModelConfig("hiyori")
	if err != nil {
		t.Fatalf("LoadModelConfig: %v", err)
	}
	if cfg.Breathing.Parameter != "CustomParam" {
		t.Fatalf("expected model-specific value to win, got %q", cfg.Breathing.Parameter)
	}
}

func TestSaveThenLoadModelConfig_RoundTrips(t *testing.T) {
	s := NewStore(t.TempDir())
	cfg := controllers.DefaultConfig()
	cfg.ExpressionApply.Expressions = []controllers.ExpressionState{
		{Name: "happy", File: "happy.exp3.json", Active: true},
	}

	if err := s.SaveModelConfig("hiyori", cfg); err != nil {
		t.Fatalf("SaveModelConfig: %v", err)
	}
	got, found, err := s.readModelConfig("hiyori")
	if err != nil || !found {
		t.Fatalf("readModelConfig: found=%v err=%v", found, err)
	}
	if got.ExpressionApply.Expressions[0].Name != "happy" {
		t.Fatalf("round-tripped expression list lost data: %+v", got.ExpressionApply.Expressions)
	}
}
