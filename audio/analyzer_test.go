package audio

import (
	"math"
	"slices"
	"testing"
)

func sineChunk(n int, rate float64, parts ...[2]float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / rate
		for _, p := range parts {
			out[i] += p[1] * math.Sin(2*math.Pi*p[0]*t)
		}
	}
	return out
}

// TestAnalyzeTwoTones verifies the dominant bin lands near 440 Hz
func TestAnalyzeTwoTones(t *testing.T) {
	cfg := DefaultConfig()
	a := NewAnalyzer(cfg)
	binWidth := float64(cfg.SampleRate) / float64(cfg.FFTSize)

	samples := sineChunk(cfg.ChunkSize, float64(cfg.SampleRate), [2]float64{440, 0.5}, [2]float64{880, 0.3})
	f := a.Analyze(samples, 1.5)
	if f == nil {
		t.Fatal("Expected a frame for a two-tone chunk")
	}

	if f.Timestamp != 1.5 {
		t.Errorf("Expected timestamp 1.5, got %f", f.Timestamp)
	}
	if len(f.FrequencyData) == 0 || len(f.FrequencyData) > cfg.TopPeaks {
		t.Fatalf("Expected 1..%d bins, got %d", cfg.TopPeaks, len(f.FrequencyData))
	}
	if got := f.FrequencyData[0].Frequency; math.Abs(got-440) > binWidth {
		t.Errorf("Expected strongest bin within %.1f Hz of 440, got %.2f", binWidth, got)
	}
	if f.FrequencyData[0].Magnitude != 1 {
		t.Errorf("Expected strongest bin normalized to 1, got %f", f.FrequencyData[0].Magnitude)
	}
	for i := 1; i < len(f.FrequencyData); i++ {
		if f.FrequencyData[i].Magnitude > f.FrequencyData[i-1].Magnitude {
			t.Errorf("Bins not in descending magnitude at %d", i)
		}
	}

	found880 := false
	for _, b := range f.FrequencyData {
		if math.Abs(b.Frequency-880) <= binWidth {
			found880 = true
		}
	}
	if !found880 {
		t.Error("Expected a bin near 880 Hz")
	}

	// Peak-normalized 0.5+0.3 mix: RMS is between the pure-sine bound and 1
	if f.RMSEnergy <= 0.3 || f.RMSEnergy >= 1 {
		t.Errorf("RMS out of range: %f", f.RMSEnergy)
	}
	if f.SpectralCentroid < 300 || f.SpectralCentroid > 1000 {
		t.Errorf("Centroid out of range: %f", f.SpectralCentroid)
	}
	if len(f.Harmonics) != cfg.HarmonicCount {
		t.Errorf("Expected %d harmonics, got %d", cfg.HarmonicCount, len(f.Harmonics))
	}
	if f.DataArray != nil {
		t.Error("Expected no DataArray without KeepSamples")
	}
}

// TestAnalyzeSilence verifies an all-zero chunk yields no frame
func TestAnalyzeSilence(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	if f := a.Analyze(make([]float64, 4096), 0); f != nil {
		t.Errorf("Expected nil frame for silence, got %+v", f)
	}
	if f := a.Analyze(nil, 0); f != nil {
		t.Error("Expected nil frame for empty chunk")
	}
}

// TestAnalyzeKeepSamples verifies DataArray carries the normalized chunk
func TestAnalyzeKeepSamples(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepSamples = true
	a := NewAnalyzer(cfg)

	samples := sineChunk(512, float64(cfg.SampleRate), [2]float64{1000, 0.25})
	f := a.Analyze(samples, 0)
	if f == nil {
		t.Fatal("Expected frame")
	}
	if len(f.DataArray) != 512 {
		t.Fatalf("Expected 512 samples, got %d", len(f.DataArray))
	}
	peak := 0.0
	for _, s := range f.DataArray {
		peak = max(peak, math.Abs(s))
	}
	if math.Abs(peak-1) > 1e-12 {
		t.Errorf("Expected peak-normalized samples, peak %f", peak)
	}
	if samples[1] == f.DataArray[1] {
		t.Error("Expected input chunk to stay unscaled")
	}
}

// TestPhiHarmonics verifies folding and ordering
func TestPhiHarmonics(t *testing.T) {
	h := PhiHarmonics(440, 8)
	if len(h) != 8 {
		t.Fatalf("Expected 8 harmonics, got %d", len(h))
	}
	if !slices.IsSorted(h) {
		t.Errorf("Expected ascending harmonics: %v", h)
	}
	for _, f := range h {
		if f < 220 || f > 1760 {
			t.Errorf("Harmonic %f outside folding range", f)
		}
	}
	if h[0] != 440 {
		t.Errorf("Expected fundamental first, got %f", h[0])
	}
	// φ^3 ≈ 4.236 exceeds 4, so i=6 folds down one octave
	want := 440 * math.Pow(1.618033988749895, 3) / 2
	if !slices.ContainsFunc(h, func(f float64) bool { return math.Abs(f-want) < 1e-9 }) {
		t.Errorf("Expected folded harmonic %f in %v", want, h)
	}

	if PhiHarmonics(0, 8) != nil {
		t.Error("Expected nil for zero fundamental")
	}
	if PhiHarmonics(-10, 8) != nil {
		t.Error("Expected nil for negative fundamental")
	}
}
