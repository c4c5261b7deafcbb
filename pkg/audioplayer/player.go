// Package audioplayer is a polyphonic sound-effect mixer for "sound_play"
// actions, grounded on vts_model_control/services/audio_player.py's
// pygame.mixer-backed singleton AudioPlayer.
package audioplayer

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/wav"

	"github.com/nekro-live/animctl/internal/log"
	"github.com/nekro-live/animctl/pkg/actionscheduler"
	"github.com/nekro-live/animctl/pkg/audiooutput"
)

// decodeSoundFile dispatches to the decoder matching path's extension:
// WAV/PCM16 via beep's own decoder, or a raw length-prefixed Opus packet
// stream via decodeOpusFile.
func decodeSoundFile(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".opus":
		return decodeOpusFile(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("audioplayer: unsupported sound file extension %q", filepath.Ext(path))
	}
}

// maxVoices caps concurrent playback, mirroring pygame.mixer.set_num_channels(30).
const maxVoices = 30

// Player mixes any number of short sound effects onto the shared audio
// output, each independently speed- and volume-adjustable and abruptly
// stoppable, matching AudioPlayer's channel semantics.
type Player struct {
	baseDir string
	logger  *slog.Logger

	mu      sync.Mutex
	nextID  int
	playing map[int]*voice
}

// voice is one in-flight sound effect.
type voice struct {
	stop func()
}

// New creates a Player that resolves relative sound paths against baseDir.
func New(baseDir string) *Player {
	return &Player{
		baseDir: baseDir,
		logger:  log.L().With("component", "audio_player"),
		playing: make(map[int]*voice),
	}
}

// resolvePath mirrors AudioPlayer._resolve_path: absolute paths pass
// through, relative ones resolve against baseDir.
func (p *Player) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.baseDir, path)
}

// GetDuration returns a sound file's playback duration at the given speed,
// or 0 if it can't be read. Mirrors AudioPlayer.get_duration.
func (p *Player) GetDuration(path string, speed float64) float64 {
	if speed <= 0 {
		speed = 1.0
	}
	f, err := os.Open(p.resolvePath(path))
	if err != nil {
		p.logger.Warn("cannot open sound file for duration", "path", path, "error", err)
		return 0
	}
	defer f.Close()

	streamer, format, err := decodeSoundFile(f, path)
	if err != nil {
		p.logger.Warn("cannot decode sound file for duration", "path", path, "error", err)
		return 0
	}
	defer streamer.Close()

	seconds := format.SampleRate.D(streamer.Len()).Seconds()
	return seconds / speed
}

// Play enqueues a sound effect without waiting for or reporting its play
// id, satisfying actionscheduler.SoundEnqueuer for fire-and-forget
// "sound_play" actions.
func (p *Player) Play(d actionscheduler.SoundPlayData) {
	p.PlaySound(d)
}

// PlaySound decodes and plays a sound effect, returning its play id and
// whether it was started. A missing file, a decode failure, or being at
// capacity all log and return (0, false) rather than propagating an
// error, matching the original's log-and-return-None behavior.
func (p *Player) PlaySound(d actionscheduler.SoundPlayData) (int, bool) {
	speed := d.Speed
	if speed <= 0 {
		speed = 1.0
	}
	volume := d.Volume
	if volume <= 0 {
		volume = 1.0
	}

	p.mu.Lock()
	if len(p.playing) >= maxVoices {
		p.mu.Unlock()
		p.logger.Warn("audio player at capacity, dropping sound", "path", d.Path, "voices", maxVoices)
		return 0, false
	}
	p.mu.Unlock()

	f, err := os.Open(p.resolvePath(d.Path))
	if err != nil {
		p.logger.Error("cannot open sound file", "path", d.Path, "error", err)
		return 0, false
	}

	streamer, format, err := decodeSoundFile(f, d.Path)
	if err != nil {
		f.Close()
		p.logger.Error("cannot decode sound file", "path", d.Path, "error", err)
		return 0, false
	}

	if err := audiooutput.Ensure(); err != nil {
		streamer.Close()
		f.Close()
		p.logger.Error("cannot initialize audio output", "error", err)
		return 0, false
	}

	var s beep.Streamer = streamer
	if speed != 1.0 {
		s = beep.ResampleRatio(4, 1/speed, s)
	}
	if d.Duration > 0 {
		s = beep.Take(format.SampleRate.N(time.Duration(d.Duration*float64(time.Second))), s)
	}
	vol := &effects.Volume{Streamer: s, Base: 2, Volume: linearToLogVolume(volume), Silent: volume <= 0}
	stoppable := &stoppableStreamer{Streamer: vol}
	resampled := audiooutput.Resampled(format.SampleRate, stoppable)

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.playing[id] = &voice{stop: stoppable.Stop}
	p.mu.Unlock()

	audiooutput.Play(beep.Seq(resampled, beep.Callback(func() {
		streamer.Close()
		f.Close()
		p.mu.Lock()
		delete(p.playing, id)
		p.mu.Unlock()
	})))

	return id, true
}

// Stop halts the given play id immediately, returning false if it isn't
// currently playing. Mirrors AudioPlayer.stop.
func (p *Player) Stop(id int) bool {
	p.mu.Lock()
	v, ok := p.playing[id]
	p.mu.Unlock()
	if !ok {
		return false
	}
	v.stop()
	return true
}

// IsPlaying reports whether the given play id is still in flight.
func (p *Player) IsPlaying(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.playing[id]
	return ok
}

// PlayingCount returns the number of currently in-flight sounds.
func (p *Player) PlayingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.playing)
}

// StopAll halts every in-flight sound. Mirrors AudioPlayer.stop_all.
func (p *Player) StopAll() {
	p.mu.Lock()
	voices := make([]*voice, 0, len(p.playing))
	for _, v := range p.playing {
		voices = append(voices, v)
	}
	p.mu.Unlock()
	for _, v := range voices {
		v.stop()
	}
}

// stoppableStreamer wraps a beep.Streamer so Stop can end playback
// immediately regardless of how much of the underlying stream remains,
// mirroring pygame's channel.stop(). beep has no built-in cancel
// primitive for an in-flight Streamer, so this flips a guarded flag that
// Stream checks before pulling from the wrapped streamer.
type stoppableStreamer struct {
	beep.Streamer
	mu      sync.Mutex
	stopped bool
}

func (s *stoppableStreamer) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *stoppableStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return 0, false
	}
	return s.Streamer.Stream(samples)
}

// linearToLogVolume converts pygame's linear 0.0-1.0 gain to beep's
// logarithmic scale (effects.Volume multiplies amplitude by Base^Volume),
// so a volume of 0.5 here sounds like pygame's 0.5, not beep's raw -1.
func linearToLogVolume(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return math.Log2(linear)
}

var _ actionscheduler.SoundEnqueuer = (*Player)(nil)
