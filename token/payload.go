package token

import (
	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/particle"
)

// Payload is the type-specific body of a token
type Payload interface {
	TokenType() Type
}

// AudioFramePayload summarizes a frame; slices are truncated to the first SummaryFrequencies entries
type AudioFramePayload struct {
	RMSEnergy        float64              `json:"rmsEnergy"`
	SpectralCentroid float64              `json:"spectralCentroid"`
	FrequencyCount   int                  `json:"frequencyCount"`
	TopFrequencies   []frame.FrequencyBin `json:"topFrequencies"`
	PhiHarmonics     []float64            `json:"phiHarmonics"`
	Seed             uint64               `json:"seed"`
}

func (*AudioFramePayload) TokenType() Type { return TypeAudioFrame }

// HarmonicPayload carries one φ-harmonic with its paired magnitude
type HarmonicPayload struct {
	Harmonic      float64 `json:"harmonic"`
	Magnitude     float64 `json:"magnitude"`
	HarmonicIndex int     `json:"harmonicIndex"`
	PhiRatio      float64 `json:"phiRatio"` // φ^(index/2)
}

func (*HarmonicPayload) TokenType() Type { return TypePhiHarmonic }

// ParticleEventPayload is a full particle state snapshot
type ParticleEventPayload struct {
	Event      string      `json:"event"`
	ParticleID particle.ID `json:"particleId"`
	ParentID   particle.ID `json:"parentId,omitempty"`
	Position   [3]float64  `json:"position"`
	Velocity   [3]float64  `json:"velocity"`
	Frequency  float64     `json:"frequency"`
	Ec         float64     `json:"Ec"`
	UGrav      float64     `json:"Ugrav"`
	UDm        float64     `json:"Udm"`
	Nu         float64     `json:"vi"`
	Theta      float64     `json:"theta"`
	Omega      float64     `json:"omega"`
	X12        float64     `json:"x12"`
	M12        float64     `json:"m12"`
	Entropy    float64     `json:"entropyS"`
	Mass       float64     `json:"mass"`
}

func (*ParticleEventPayload) TokenType() Type { return TypeParticleEvent }

// FrequencyUpdatePayload records the bin assigned to a particle
type FrequencyUpdatePayload struct {
	ParticleID particle.ID `json:"particleId"`
	Frequency  float64     `json:"frequency"`
	Magnitude  float64     `json:"magnitude"`
}

func (*FrequencyUpdatePayload) TokenType() Type { return TypeFrequencyUpdate }

// newPayload allocates the payload for t, nil when t is unknown
func newPayload(t Type) Payload {
	switch t {
	case TypeAudioFrame:
		return &AudioFramePayload{}
	case TypePhiHarmonic:
		return &HarmonicPayload{}
	case TypeParticleEvent:
		return &ParticleEventPayload{}
	case TypeFrequencyUpdate:
		return &FrequencyUpdatePayload{}
	}
	return nil
}
