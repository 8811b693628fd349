package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
)

// WaveType defines oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
)

// resampleQuality is passed to beep.Resample for WAV inputs at a foreign rate
const resampleQuality = 4

// oscillator generates an endless non-sine wave
type oscillator struct {
	freq  float64
	phase float64
	wave  WaveType
	rate  beep.SampleRate
}

func newOscillator(freq float64, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{freq: freq, wave: wave, rate: rate}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		var val float64
		switch o.wave {
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		default:
			val = math.Sin(2 * math.Pi * o.phase)
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase) // Keep in [0, 1)
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// math.Log2(0) is -Inf, so 0 volume maps to Silent
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// Source is a stereo sample stream at a known rate
type Source struct {
	Streamer beep.Streamer
	Rate     beep.SampleRate
	closer   io.Closer
}

// Close releases the underlying file, if any
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NewToneSource mixes the tones into one endless stream
func NewToneSource(rate beep.SampleRate, tones []Tone) (*Source, error) {
	if len(tones) == 0 {
		return nil, ErrNoSource
	}
	streamers := make([]beep.Streamer, 0, len(tones))
	for i, t := range tones {
		var s beep.Streamer
		if t.Wave == WaveSine {
			st, err := generators.SineTone(rate, t.Frequency)
			if err != nil {
				return nil, fmt.Errorf("tone %d: %w", i, err)
			}
			s = st
		} else {
			s = newOscillator(t.Frequency, t.Wave, rate)
		}
		streamers = append(streamers, newVolume(s, t.Amplitude))
	}
	return &Source{Streamer: beep.Mix(streamers...), Rate: rate}, nil
}

// OpenWAV decodes a WAV file, resampling to rate when the file differs
func OpenWAV(path string, rate beep.SampleRate) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != rate {
		s = beep.Resample(resampleQuality, format.SampleRate, rate, streamer)
	}
	return &Source{Streamer: s, Rate: rate, closer: streamer}, nil
}

// OpenSource picks the WAV file when configured, the tone mix otherwise
func OpenSource(cfg *Config) (*Source, error) {
	rate := beep.SampleRate(cfg.SampleRate)
	if cfg.File != "" {
		return OpenWAV(cfg.File, rate)
	}
	return NewToneSource(rate, cfg.Tones)
}
