package token

// Type identifies the kind of record a token carries
type Type string

const (
	// TypeAudioFrame summarizes one ingested frame
	// Trigger: every ingested frame | Payload: *AudioFramePayload
	TypeAudioFrame Type = "audio_frame"

	// TypePhiHarmonic pairs a harmonic with the magnitude at the same index
	// Trigger: first min(len(harmonics), len(frequencyData)) entries of a frame | Payload: *HarmonicPayload
	TypePhiHarmonic Type = "phi_harmonic"

	// TypeParticleEvent snapshots a particle at a lifecycle event
	// Trigger: particle creation from audio | Payload: *ParticleEventPayload
	TypeParticleEvent Type = "particle_event"

	// TypeFrequencyUpdate records a frequency reassignment
	// Trigger: frame bin i paired with particle i | Payload: *FrequencyUpdatePayload
	TypeFrequencyUpdate Type = "frequency_update"
)

// EventAudioCreation is the particle_event kind emitted for particles spawned by ingestion
const EventAudioCreation = "audio_creation"

// Valid reports whether t is a known token type
func (t Type) Valid() bool {
	switch t {
	case TypeAudioFrame, TypePhiHarmonic, TypeParticleEvent, TypeFrequencyUpdate:
		return true
	}
	return false
}
