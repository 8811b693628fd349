package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrMissingField is returned when decoded frame data lacks a required field
var ErrMissingField = errors.New("missing required field")

// FrequencyBin is one (frequency, magnitude) pair of a frame's spectrum
type FrequencyBin struct {
	Frequency float64 `json:"frequency"` // Hz, >= 0
	Magnitude float64 `json:"magnitude"` // Normalized, [0, 1]
}

// AudioFrame is one analyzed audio chunk handed to the engine
// FrequencyData is ordered by descending salience
type AudioFrame struct {
	Timestamp        float64        `json:"timestamp"`
	RMSEnergy        float64        `json:"rmsEnergy"`
	FrequencyData    []FrequencyBin `json:"frequencyData"`
	SpectralCentroid float64        `json:"spectralCentroid"`
	Harmonics        []float64      `json:"harmonics"`
	DataArray        []float64      `json:"dataArray"` // Optional raw samples; null when not captured
}

// Clone returns a deep copy sharing no slices with f
func (f *AudioFrame) Clone() *AudioFrame {
	if f == nil {
		return nil
	}
	return &AudioFrame{
		Timestamp:        f.Timestamp,
		RMSEnergy:        f.RMSEnergy,
		FrequencyData:    slices.Clone(f.FrequencyData),
		SpectralCentroid: f.SpectralCentroid,
		Harmonics:        slices.Clone(f.Harmonics),
		DataArray:        slices.Clone(f.DataArray),
	}
}

// HarmonicPairs returns how many harmonic tokens the frame yields
func (f *AudioFrame) HarmonicPairs() int {
	return min(len(f.Harmonics), len(f.FrequencyData))
}

// wireFrame is the JSON shape; the alias type drops the custom methods
type wireFrame AudioFrame

// MarshalJSON emits empty arrays rather than null for the required sequences
func (f AudioFrame) MarshalJSON() ([]byte, error) {
	w := wireFrame(f)
	if w.FrequencyData == nil {
		w.FrequencyData = []FrequencyBin{}
	}
	if w.Harmonics == nil {
		w.Harmonics = []float64{}
	}
	return json.Marshal(w)
}

var frameRequired = []string{"timestamp", "rmsEnergy", "frequencyData", "spectralCentroid", "harmonics"}

// UnmarshalJSON rejects frames missing any required field
// dataArray may be absent or null
func (f *AudioFrame) UnmarshalJSON(data []byte) error {
	if err := requireFields(data, frameRequired); err != nil {
		return err
	}
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*f = AudioFrame(w)
	return nil
}

var binRequired = []string{"frequency", "magnitude"}

type wireBin FrequencyBin

// UnmarshalJSON rejects bins missing frequency or magnitude
func (b *FrequencyBin) UnmarshalJSON(data []byte) error {
	if err := requireFields(data, binRequired); err != nil {
		return err
	}
	var w wireBin
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = FrequencyBin(w)
	return nil
}

// requireFields checks that every key is present and non-null in a JSON object
func requireFields(data []byte, keys []string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("%w: object is null", ErrMissingField)
	}
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%w: %q", ErrMissingField, k)
		}
	}
	return nil
}
