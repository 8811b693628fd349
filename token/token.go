package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

// ErrUnknownType is returned when decoding a token whose type is not recognized
var ErrUnknownType = errors.New("unknown token type")

// Token is an immutable timestamped record
// JSON form is flat: id, type and timestamp followed by the payload fields
type Token struct {
	ID        string
	Type      Type
	Timestamp float64
	Payload   Payload
}

type header struct {
	ID        string  `json:"id"`
	Type      Type    `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// NewAudioFrame summarizes f; seq must be unique within the stream
func NewAudioFrame(seq int, f *frame.AudioFrame, seed uint64) Token {
	n := min(len(f.FrequencyData), parameter.SummaryFrequencies)
	top := make([]frame.FrequencyBin, n)
	copy(top, f.FrequencyData[:n])

	h := min(len(f.Harmonics), parameter.SummaryFrequencies)
	harmonics := make([]float64, h)
	copy(harmonics, f.Harmonics[:h])

	return Token{
		ID:        fmt.Sprintf("audio_frame_%d", seq),
		Type:      TypeAudioFrame,
		Timestamp: f.Timestamp,
		Payload: &AudioFramePayload{
			RMSEnergy:        f.RMSEnergy,
			SpectralCentroid: f.SpectralCentroid,
			FrequencyCount:   len(f.FrequencyData),
			TopFrequencies:   top,
			PhiHarmonics:     harmonics,
			Seed:             seed,
		},
	}
}

// NewPhiHarmonic records harmonic idx of a frame with the magnitude of bin idx
func NewPhiHarmonic(seq int, ts, harmonic, magnitude float64, idx int) Token {
	return Token{
		ID:        fmt.Sprintf("harmonic_%d_%d", seq, idx),
		Type:      TypePhiHarmonic,
		Timestamp: ts,
		Payload: &HarmonicPayload{
			Harmonic:      harmonic,
			Magnitude:     magnitude,
			HarmonicIndex: idx,
			PhiRatio:      math.Pow(parameter.Phi, float64(idx)/2),
		},
	}
}

// NewParticleEvent snapshots p at event
func NewParticleEvent(seq int, ts float64, event string, p *particle.Particle) Token {
	return Token{
		ID:        fmt.Sprintf("particle_%s_%d_%s", event, seq, p.ID),
		Type:      TypeParticleEvent,
		Timestamp: ts,
		Payload: &ParticleEventPayload{
			Event:      event,
			ParticleID: p.ID,
			ParentID:   p.ParentID,
			Position:   vmath.V3FArray(p.Position),
			Velocity:   vmath.V3FArray(p.Velocity),
			Frequency:  p.Frequency,
			Ec:         p.Ec,
			UGrav:      p.UGrav,
			UDm:        p.UDm,
			Nu:         p.Nu,
			Theta:      p.Theta,
			Omega:      p.Omega,
			X12:        p.X12,
			M12:        p.M12,
			Entropy:    p.Entropy,
			Mass:       p.Mass,
		},
	}
}

// NewFrequencyUpdate records bin being assigned to particle id
func NewFrequencyUpdate(seq int, ts float64, id particle.ID, bin frame.FrequencyBin) Token {
	return Token{
		ID:        fmt.Sprintf("freq_update_%d_%s", seq, id),
		Type:      TypeFrequencyUpdate,
		Timestamp: ts,
		Payload: &FrequencyUpdatePayload{
			ParticleID: id,
			Frequency:  bin.Frequency,
			Magnitude:  bin.Magnitude,
		},
	}
}

// MarshalJSON splices the header and payload objects into one flat object
func (t Token) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(header{ID: t.ID, Type: t.Type, Timestamp: t.Timestamp})
	if err != nil {
		return nil, err
	}
	if t.Payload == nil {
		return head, nil
	}
	body, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("token %s payload: %w", t.ID, err)
	}
	if len(body) <= 2 {
		return head, nil
	}

	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

// UnmarshalJSON decodes the header then the payload matching its type
func (t *Token) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	payload := newPayload(h.Type)
	if payload == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("token %s payload: %w", h.ID, err)
	}
	*t = Token{ID: h.ID, Type: h.Type, Timestamp: h.Timestamp, Payload: payload}
	return nil
}
