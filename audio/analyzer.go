package audio

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/parameter"
)

// Analyzer turns mono sample chunks into frames
// Not safe for concurrent use; buffers are reused between calls
type Analyzer struct {
	sampleRate  float64
	fftSize     int
	topPeaks    int
	threshold   float64
	harmonics   int
	keepSamples bool

	fft    *fourier.FFT
	seq    []float64
	coeffs []complex128
	mags   []float64
	order  []int
}

func NewAnalyzer(cfg *Config) *Analyzer {
	return &Analyzer{
		sampleRate:  float64(cfg.SampleRate),
		fftSize:     cfg.FFTSize,
		topPeaks:    cfg.TopPeaks,
		threshold:   cfg.PeakThreshold,
		harmonics:   cfg.HarmonicCount,
		keepSamples: cfg.KeepSamples,
		fft:         fourier.NewFFT(cfg.FFTSize),
		seq:         make([]float64, cfg.FFTSize),
		coeffs:      make([]complex128, cfg.FFTSize/2+1),
		mags:        make([]float64, cfg.FFTSize/2+1),
		order:       make([]int, cfg.FFTSize/2+1),
	}
}

// Analyze normalizes the chunk, transforms its first fftSize samples
// and keeps the strongest bins above threshold in descending order
// Returns nil when no bin qualifies; such chunks carry nothing to ingest
func (a *Analyzer) Analyze(samples []float64, timestamp float64) *frame.AudioFrame {
	if len(samples) == 0 {
		return nil
	}

	norm := slices.Clone(samples)
	peak := 0.0
	for _, s := range norm {
		peak = max(peak, math.Abs(s))
	}
	if peak > 0 {
		floats.Scale(1/peak, norm)
	}

	// Truncate or zero-pad to the transform length
	clear(a.seq)
	copy(a.seq, norm)
	a.fft.Coefficients(a.coeffs, a.seq)

	for i, c := range a.coeffs {
		a.mags[i] = math.Hypot(real(c), imag(c))
		a.order[i] = i
	}
	maxMag := floats.Max(a.mags)
	if maxMag <= 0 {
		return nil
	}

	slices.SortStableFunc(a.order, func(x, y int) int {
		switch {
		case a.mags[x] > a.mags[y]:
			return -1
		case a.mags[x] < a.mags[y]:
			return 1
		}
		return 0
	})

	var bins []frame.FrequencyBin
	for _, i := range a.order[:min(a.topPeaks, len(a.order))] {
		if a.mags[i] <= a.threshold {
			continue
		}
		bins = append(bins, frame.FrequencyBin{
			Frequency: a.fft.Freq(i) * a.sampleRate,
			Magnitude: a.mags[i] / maxMag,
		})
	}
	if len(bins) == 0 {
		return nil
	}

	f := &frame.AudioFrame{
		Timestamp:        timestamp,
		RMSEnergy:        rms(norm),
		FrequencyData:    bins,
		SpectralCentroid: centroid(bins),
		Harmonics:        PhiHarmonics(bins[0].Frequency, a.harmonics),
	}
	if a.keepSamples {
		f.DataArray = norm
	}
	return f
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// centroid is the magnitude-weighted mean frequency
func centroid(bins []frame.FrequencyBin) float64 {
	var weighted, total float64
	for _, b := range bins {
		weighted += b.Frequency * b.Magnitude
		total += b.Magnitude
	}
	if total <= 0 {
		return 0
	}
	return weighted / total
}

// PhiHarmonics returns fundamental·φ^(i/2) for i < count,
// octave-folded into [fundamental/2, 4·fundamental] and sorted ascending
func PhiHarmonics(fundamental float64, count int) []float64 {
	if fundamental <= 0 || count <= 0 {
		return nil
	}
	out := make([]float64, count)
	for i := range out {
		f := fundamental * math.Pow(parameter.Phi, float64(i)/2)
		for f > fundamental*4 {
			f /= 2
		}
		for f < fundamental/2 {
			f *= 2
		}
		out[i] = f
	}
	slices.Sort(out)
	return out
}
