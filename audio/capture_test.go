package audio

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/synapse/frame"
)

type sliceSink struct {
	mu     sync.Mutex
	frames []*frame.AudioFrame
}

func (s *sliceSink) Push(f *frame.AudioFrame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Realtime = false
	return cfg
}

// TestCaptureToneSource verifies frames carry stream-time timestamps and stop at MaxFrames
func TestCaptureToneSource(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFrames = 3

	src, err := OpenSource(cfg)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer src.Close()

	sink := &sliceSink{}
	c := NewCapture(src, sink, cfg, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(sink.frames))
	}
	chunkDur := float64(cfg.ChunkSize) / float64(cfg.SampleRate)
	for i, f := range sink.frames {
		if math.Abs(f.Timestamp-float64(i)*chunkDur) > 1e-12 {
			t.Errorf("Frame %d: expected timestamp %f, got %f", i, float64(i)*chunkDur, f.Timestamp)
		}
		if len(f.FrequencyData) == 0 {
			t.Errorf("Frame %d has no frequency data", i)
		}
	}
	if c.Pushed() != 3 || c.Chunks() != 3 {
		t.Errorf("Expected 3 pushed/3 chunks, got %d/%d", c.Pushed(), c.Chunks())
	}
}

// TestCaptureDeterministic verifies two captures of the same tones agree exactly
func TestCaptureDeterministic(t *testing.T) {
	run := func() []*frame.AudioFrame {
		cfg := testConfig()
		cfg.MaxFrames = 2
		src, err := OpenSource(cfg)
		if err != nil {
			t.Fatalf("OpenSource failed: %v", err)
		}
		sink := &sliceSink{}
		if err := NewCapture(src, sink, cfg, nil).Run(context.Background()); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return sink.frames
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("Frame count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].RMSEnergy != b[i].RMSEnergy || a[i].SpectralCentroid != b[i].SpectralCentroid {
			t.Errorf("Frame %d differs between runs", i)
		}
	}
}

// TestCaptureSourceExhausted verifies a finite source ends the run with a partial last chunk
func TestCaptureSourceExhausted(t *testing.T) {
	cfg := testConfig()
	rate := beep.SampleRate(cfg.SampleRate)
	tone := newOscillator(300, WaveSquare, rate)
	src := &Source{Streamer: beep.Take(cfg.ChunkSize+100, tone), Rate: rate}

	sink := &sliceSink{}
	c := NewCapture(src, sink, cfg, nil)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.Chunks() != 2 {
		t.Errorf("Expected 2 chunks (full + partial), got %d", c.Chunks())
	}
	if len(sink.frames) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(sink.frames))
	}
}

// TestCaptureCancel verifies a realtime capture exits on cancellation
func TestCaptureCancel(t *testing.T) {
	cfg := DefaultConfig()
	src, err := OpenSource(cfg)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewCapture(src, &sliceSink{}, cfg, nil).Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Capture did not stop after cancel")
	}
}

// TestConfigValidate covers rejected settings
func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, ErrInvalidConfig},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, ErrInvalidConfig},
		{"tiny fft", func(c *Config) { c.FFTSize = 1 }, ErrInvalidConfig},
		{"above nyquist", func(c *Config) { c.Tones[0].Frequency = 30000 }, ErrInvalidConfig},
		{"no source", func(c *Config) { c.Tones = nil }, ErrNoSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestOpenWAVMissing verifies a missing file is reported
func TestOpenWAVMissing(t *testing.T) {
	if _, err := OpenWAV("does-not-exist.wav", beep.SampleRate(44100)); err == nil {
		t.Error("Expected error for missing file")
	}
}
