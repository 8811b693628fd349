package diagnostics

// Snapshot is a read-only view of the simulation after a tick
// Built by the engine and handed to readers by value
type Snapshot struct {
	Tick          uint64       `json:"tick"`
	Mode          string       `json:"mode"`
	Seed          uint64       `json:"seed"`
	ParticleCount int          `json:"particleCount"`
	TokenCount    int          `json:"tokenCount"`
	TokenRate     float64      `json:"tokenRate"`
	DT            float64      `json:"dt"`
	DroppedFrames uint64       `json:"droppedFrames"`
	Psi           Psi          `json:"psi"`
	Anomalies     []NamedValue `json:"anomalies,omitempty"`
	Sync          Sync         `json:"sync"`
	Conservation  Conservation `json:"conservation"`
	Virial        Virial       `json:"virial"`
	Emergence     Emergence    `json:"emergence"`

	// Points is the projected (dim 0, dim 1) position per particle, for display
	Points [][2]float64 `json:"points,omitempty"`
}
