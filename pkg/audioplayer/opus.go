package audioplayer

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"gopkg.in/hraban/opus.v2"
)

// opusSampleRate/opusChannels match the teacher's own decoder
// construction in the now-deleted pkg/video/client.go
// (opus.NewDecoder(48000, 1), one packet per Decode call) — this is the
// one place in this codebase the teacher actually exercised
// gopkg.in/hraban/opus.v2, reused here for decoding pre-encoded Opus
// sound effects instead of WebRTC RTP payloads.
const (
	opusSampleRate = 48000
	opusChannels   = 1
	// opusMaxFrameSamples covers the largest Opus frame duration (120ms)
	// at 48kHz, the same headroom libopus examples size a decode buffer to.
	opusMaxFrameSamples = 5760
)

// decodeOpusFile decodes dir's sound-effect container: a sequence of
// [4-byte big-endian length][opus packet] records, each packet decoded
// independently and appended into one mono PCM16 buffer. There is no Ogg
// page/segment framing here — sound effects are authored offline and
// stored pre-packetized, the same granularity RTP already hands a
// decoder in the teacher's video client.
func decodeOpusFile(r io.Reader) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := opus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("audioplayer: creating opus decoder: %w", err)
	}

	var samples []int16
	frame := make([]int16, opusMaxFrameSamples)
	var lenBuf [4]byte

	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, beep.Format{}, fmt.Errorf("audioplayer: reading opus packet length: %w", err)
		}
		packetLen := binary.BigEndian.Uint32(lenBuf[:])
		packet := make([]byte, packetLen)
		if _, err := io.ReadFull(r, packet); err != nil {
			return nil, beep.Format{}, fmt.Errorf("audioplayer: reading opus packet body: %w", err)
		}

		n, err := dec.Decode(packet, frame)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("audioplayer: decoding opus packet: %w", err)
		}
		samples = append(samples, frame[:n]...)
	}

	format := beep.Format{SampleRate: beep.SampleRate(opusSampleRate), NumChannels: opusChannels, Precision: 2}
	return &opusStreamer{samples: samples}, format, nil
}

// opusStreamer plays back a fully-decoded mono PCM16 buffer, implementing
// beep.StreamSeekCloser the same way beep's own wav decoder does so
// decodeSoundFile's two branches are interchangeable to their callers.
type opusStreamer struct {
	samples []int16
	pos     int
}

func (s *opusStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && s.pos < len(s.samples) {
		v := float64(s.samples[s.pos]) / 32768.0
		samples[n][0] = v
		samples[n][1] = v
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *opusStreamer) Err() error { return nil }

func (s *opusStreamer) Len() int { return len(s.samples) }

func (s *opusStreamer) Position() int { return s.pos }

func (s *opusStreamer) Seek(p int) error {
	if p < 0 || p > len(s.samples) {
		return fmt.Errorf("audioplayer: opus seek position %d out of range [0,%d]", p, len(s.samples))
	}
	s.pos = p
	return nil
}

func (s *opusStreamer) Close() error { return nil }
