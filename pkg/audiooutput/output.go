// Package audiooutput owns the one process-wide audio output device that
// every in-process audio producer (TTS playback, sound-effect playback)
// mixes onto. gopxl/beep's speaker package models a single hardware
// device: re-calling speaker.Init reopens it and would cut off whatever
// was already playing, so every caller shares one rate and one Init.
package audiooutput

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SampleRate is the fixed rate the shared device runs at. Producers whose
// native sample rate differs resample to this before calling Play.
const SampleRate = beep.SampleRate(44100)

var (
	once    sync.Once
	initErr error
)

// Ensure initializes the shared device on first call; subsequent calls
// are no-ops that return the first call's result.
func Ensure() error {
	once.Do(func() {
		initErr = speaker.Init(SampleRate, SampleRate.N(time.Second/20))
	})
	return initErr
}

// Play mixes s onto the shared device. Callers must call Ensure first.
func Play(s beep.Streamer) {
	speaker.Play(s)
}

// Resampled wraps s for playback if its native rate differs from
// SampleRate, leaving it untouched otherwise.
func Resampled(srcRate beep.SampleRate, s beep.Streamer) beep.Streamer {
	if srcRate == SampleRate || srcRate <= 0 {
		return s
	}
	return beep.Resample(4, srcRate, SampleRate, s)
}
