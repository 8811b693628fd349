package status

import (
	"sync/atomic"

	"github.com/lixenwraith/synapse/diagnostics"
)

// Metric keys written by the engine after each tick
const (
	KeyTicks         = "engine.ticks"
	KeyParticles     = "engine.particles"
	KeyTokenCount    = "stream.tokens"
	KeyTokenRate     = "stream.rate"
	KeyDroppedFrames = "queue.dropped"
	KeyDT            = "physics.dt"
	KeyPsiTotal      = "diag.psi"
	KeySyncR         = "diag.sync_r"
	KeyMode          = "engine.mode"
	KeyPeers         = "feed.peers"
	KeyFramesPushed  = "audio.frames"
)

// Registry is the read side of the simulation for concurrent consumers
// The engine caches metric pointers once and writes atomics each tick;
// the latest full snapshot is swapped in as an immutable pointer
type Registry struct {
	Bools   *MetricMap[atomic.Bool]
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Strings *MetricMap[AtomicString]

	snapshot atomic.Pointer[diagnostics.Snapshot]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Bools:   NewMetricMap[atomic.Bool](),
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// StoreSnapshot publishes snap; callers must not mutate it afterwards
func (r *Registry) StoreSnapshot(snap *diagnostics.Snapshot) {
	r.snapshot.Store(snap)
}

// Snapshot returns the latest published snapshot, nil before the first publish
func (r *Registry) Snapshot() *diagnostics.Snapshot {
	return r.snapshot.Load()
}

// TotalCount returns total metrics across all types
func (r *Registry) TotalCount() int {
	return r.Bools.Count() + r.Ints.Count() + r.Floats.Count() + r.Strings.Count()
}
