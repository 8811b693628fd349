package engine

// Identification written into token export metadata
const (
	EngineName = "synapse"
	Version    = "2.0.0"
)
