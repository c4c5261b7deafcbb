package sayhandler

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/gopxl/beep/v2"

	"github.com/nekro-live/animctl/pkg/audiooutput"
	"github.com/nekro-live/animctl/pkg/tts"
)

// wavHeaderSize is the canonical 44-byte RIFF/WAVE header size.
// vits-simple-api emits exactly one header at the start of the stream and
// raw PCM16LE mono data in every chunk after it.
const wavHeaderSize = 44

// chunkPlayer decodes a streamed WAV/PCM16 response chunk-by-chunk,
// playing it through the system's default audio output via beep while
// reporting per-chunk loudness (dBFS) and start/finish lifecycle signals.
// Grounded on play_audio_stream_with_ffplay's role in
// vts_model_control/clients/vits_simple_api/client.py, reimplemented over
// an in-process mixer (gopxl/beep) instead of shelling out to ffplay.
type chunkPlayer struct{}

func newChunkPlayer() *chunkPlayer { return &chunkPlayer{} }

// Play drains src until it ends, errors, or ctx is cancelled. onStarted
// fires once, right after the first decoded chunk is pushed into the
// already-playing output stream. onLoudness fires once per chunk with that chunk's RMS level in
// dBFS, feeding MouthSync's loudness channel. Implements sayhandler.Player.
func (p *chunkPlayer) Play(ctx context.Context, src tts.AudioStream, onStarted func(), onLoudness func(db float64)) error {
	sampleRate := src.Format().SampleRate
	if sampleRate <= 0 {
		sampleRate = 22050
	}

	if err := audiooutput.Ensure(); err != nil {
		return err
	}

	streamer := &pcmStreamer{}
	resampled := audiooutput.Resampled(beep.SampleRate(sampleRate), streamer)
	done := make(chan struct{})
	audiooutput.Play(beep.Seq(resampled, beep.Callback(func() { close(done) })))

	var startOnce sync.Once
	skippedHeader := false

	for {
		select {
		case <-ctx.Done():
			streamer.close()
			<-done
			return ctx.Err()
		default:
		}

		chunk, err := src.Read()
		if err != nil {
			streamer.close()
			<-done
			return err
		}
		if chunk == nil {
			break
		}
		if !skippedHeader {
			skippedHeader = true
			if len(chunk) <= wavHeaderSize {
				continue
			}
			chunk = chunk[wavHeaderSize:]
		}
		if len(chunk) == 0 {
			continue
		}

		samples := bytesToInt16(chunk)
		onLoudness(rmsDBFS(samples))
		streamer.push(samples)
		startOnce.Do(onStarted)
	}

	streamer.close()
	<-done
	return nil
}

// pcmStreamer is a beep.Streamer fed from pushed PCM16 sample slices,
// emitting silence on underrun and ending once closed and drained.
type pcmStreamer struct {
	mu     sync.Mutex
	buf    []float64
	closed bool
}

func (s *pcmStreamer) push(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range samples {
		s.buf = append(s.buf, float64(v)/32768.0)
	}
}

func (s *pcmStreamer) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Stream implements beep.Streamer.
func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 && s.closed {
		return 0, false
	}

	filled := 0
	for filled < len(samples) && len(s.buf) > 0 {
		v := s.buf[0]
		s.buf = s.buf[1:]
		samples[filled][0] = v
		samples[filled][1] = v
		filled++
	}
	for i := filled; i < len(samples); i++ {
		samples[i][0] = 0
		samples[i][1] = 0
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *pcmStreamer) Err() error { return nil }

func bytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return out
}

// rmsDBFS computes the RMS level of samples in dBFS, once per chunk, for
// this package's loudness reporting.
func rmsDBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return -100.0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum/float64(len(samples)) + 1e-12)
	return 20.0 * math.Log10(rms+1e-12)
}
