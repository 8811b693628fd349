package audio

import (
	"errors"
	"fmt"
)

// Analysis defaults
const (
	DefaultSampleRate    = 44100
	DefaultChunkSize     = 4096
	DefaultFFTSize       = 2048
	DefaultTopPeaks      = 10
	DefaultPeakThreshold = 0.05
	DefaultHarmonicCount = 8
)

// Sentinel errors
var (
	ErrInvalidConfig = errors.New("invalid audio config")
	ErrNoSource      = errors.New("no audio source")
)

// Tone is one partial of the synthetic source
type Tone struct {
	Frequency float64  `mapstructure:"frequency" json:"frequency"`
	Amplitude float64  `mapstructure:"amplitude" json:"amplitude"`
	Wave      WaveType `mapstructure:"wave" json:"wave"`
}

// Config holds capture and analysis settings
type Config struct {
	SampleRate    int     `mapstructure:"sample_rate" json:"sampleRate"`
	ChunkSize     int     `mapstructure:"chunk_size" json:"chunkSize"`
	FFTSize       int     `mapstructure:"fft_size" json:"fftSize"`
	TopPeaks      int     `mapstructure:"top_peaks" json:"topPeaks"`
	PeakThreshold float64 `mapstructure:"peak_threshold" json:"peakThreshold"`
	HarmonicCount int     `mapstructure:"harmonic_count" json:"harmonicCount"`

	// KeepSamples attaches the normalized chunk to each frame's DataArray
	KeepSamples bool `mapstructure:"keep_samples" json:"keepSamples"`

	// Realtime paces chunk production at the chunk's playback duration
	Realtime bool `mapstructure:"realtime" json:"realtime"`

	// MaxFrames stops capture after this many pushed frames, 0 = unbounded
	MaxFrames int `mapstructure:"max_frames" json:"maxFrames"`

	// File is an optional WAV input; empty selects the synthetic tones
	File  string `mapstructure:"file" json:"file"`
	Tones []Tone `mapstructure:"tones" json:"tones"`
}

// DefaultTones is the 440 Hz + 880 Hz test signal
func DefaultTones() []Tone {
	return []Tone{
		{Frequency: 440, Amplitude: 0.5, Wave: WaveSine},
		{Frequency: 880, Amplitude: 0.3, Wave: WaveSine},
	}
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SampleRate:    DefaultSampleRate,
		ChunkSize:     DefaultChunkSize,
		FFTSize:       DefaultFFTSize,
		TopPeaks:      DefaultTopPeaks,
		PeakThreshold: DefaultPeakThreshold,
		HarmonicCount: DefaultHarmonicCount,
		Realtime:      true,
		Tones:         DefaultTones(),
	}
}

// Validate checks sizes and rates
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, c.ChunkSize)
	case c.FFTSize < 2:
		return fmt.Errorf("%w: fft size %d", ErrInvalidConfig, c.FFTSize)
	case c.TopPeaks <= 0:
		return fmt.Errorf("%w: top peaks %d", ErrInvalidConfig, c.TopPeaks)
	case c.PeakThreshold < 0:
		return fmt.Errorf("%w: peak threshold %g", ErrInvalidConfig, c.PeakThreshold)
	case c.HarmonicCount < 0:
		return fmt.Errorf("%w: harmonic count %d", ErrInvalidConfig, c.HarmonicCount)
	case c.MaxFrames < 0:
		return fmt.Errorf("%w: max frames %d", ErrInvalidConfig, c.MaxFrames)
	}
	if c.File == "" && len(c.Tones) == 0 {
		return fmt.Errorf("%w: no file and no tones", ErrNoSource)
	}
	for i, t := range c.Tones {
		if t.Frequency <= 0 || t.Frequency >= float64(c.SampleRate)/2 {
			return fmt.Errorf("%w: tone %d frequency %g outside (0, nyquist)", ErrInvalidConfig, i, t.Frequency)
		}
		if t.Amplitude < 0 {
			return fmt.Errorf("%w: tone %d amplitude %g", ErrInvalidConfig, i, t.Amplitude)
		}
	}
	return nil
}
