package audioplayer

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nekro-live/animctl/internal/log"
)

// soundFileExts are the sound_play-playable extensions the registry scans
// for, matching decodeSoundFile's two supported containers: plain WAV/
// PCM16, and a length-prefixed raw Opus packet stream (".opus").
var soundFileExts = map[string]bool{".wav": true, ".opus": true}

// SoundInfo is one entry in the get_sounds reply, grounded on AudioManager's
// description-registry behavior in original_source/nekro_live_studio/services/audio_manager.py.
type SoundInfo struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Registry maintains descriptions.yaml, a name -> description sidecar next
// to a sound-effects directory: newly discovered files get an empty
// description entry, and entries for files that no longer exist are
// dropped, on every List call.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu           sync.Mutex
	descriptions map[string]string
}

// NewRegistry creates a Registry scanning dir for sound files and reading/
// writing dir/descriptions.yaml.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		logger: log.L().With("component", "audio_registry"),
	}
}

func (r *Registry) sidecarPath() string {
	return filepath.Join(r.dir, "descriptions.yaml")
}

// List rescans dir, reconciles descriptions.yaml against what's actually
// present, persists the reconciled sidecar, and returns one SoundInfo per
// sound file in name order.
func (r *Registry) List() []SoundInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, err := r.scan()
	if err != nil {
		r.logger.Error("scanning sound directory failed", "dir", r.dir, "error", err)
		return nil
	}

	existing, err := r.readSidecar()
	if err != nil {
		r.logger.Warn("reading descriptions sidecar failed, starting fresh", "error", err)
		existing = map[string]string{}
	}

	reconciled := make(map[string]string, len(names))
	for _, name := range names {
		if desc, ok := existing[name]; ok {
			reconciled[name] = desc
		} else {
			reconciled[name] = ""
		}
	}
	r.descriptions = reconciled

	if err := r.writeSidecar(reconciled); err != nil {
		r.logger.Error("writing descriptions sidecar failed", "error", err)
	}

	out := make([]SoundInfo, 0, len(names))
	for _, name := range names {
		out = append(out, SoundInfo{Name: name, Description: reconciled[name]})
	}
	return out
}

// scan lists every sound file directly under dir, relative to dir, sorted.
func (r *Registry) scan() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if soundFileExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *Registry) readSidecar() (map[string]string, error) {
	raw, err := os.ReadFile(r.sidecarPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := map[string]string{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Registry) writeSidecar(descriptions map[string]string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(descriptions)
	if err != nil {
		return err
	}
	return os.WriteFile(r.sidecarPath(), raw, 0o644)
}

// SetDescription updates name's description and persists the sidecar
// immediately. name need not currently exist in the registry.
func (r *Registry) SetDescription(name, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.descriptions == nil {
		r.descriptions = map[string]string{}
	}
	r.descriptions[name] = description
	return r.writeSidecar(r.descriptions)
}
