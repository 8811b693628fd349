package engine

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/physics"
	"github.com/lixenwraith/synapse/recorder"
	"github.com/lixenwraith/synapse/spatial"
	"github.com/lixenwraith/synapse/status"
	"github.com/lixenwraith/synapse/token"
	"github.com/lixenwraith/synapse/vmath"
)

// Mode selects where the tick pulls frames from
type Mode int

const (
	ModeLive   Mode = iota // Inbound frame queue
	ModeReplay             // Recorder cursor
)

func (m Mode) String() string {
	if m == ModeReplay {
		return "replay"
	}
	return "live"
}

// Simulator owns the particle population, token stream, recorder and Ψ accumulators
// Thread-Safety: Tick and every mutating method must run on one goroutine
// Producers only touch the frame queue; readers use Snapshot via status.Registry
type Simulator struct {
	cfg     parameter.Config
	initial parameter.Config
	log     *logrus.Logger

	particles *particle.Collection
	ids       *particle.IDSource
	rng       *rand.Rand
	seed      uint64

	stream   *token.Stream
	recorder *recorder.Recorder
	queue    *frame.Queue
	acc      *diagnostics.Accumulators
	grid     *spatial.Grid

	mode       Mode
	replayDone bool

	energy     float64 // RMS of the last frame with frequency data
	e0         float64 // Caller-managed energy baseline
	frameClock float64 // Latest ingested frame timestamp
	idle       float64 // Simulated seconds since the last ingested frame
	ticks      uint64
	published  int // Tokens already handed out by DrainTokens

	neighborBuf []int

	// Cached metric pointers
	statusReg  *status.Registry
	statTicks  *atomic.Int64
	statCount  *atomic.Int64
	statTokens *atomic.Int64
	statDrop   *atomic.Int64
	statPsi    *status.AtomicFloat
	statSyncR  *status.AtomicFloat
	statDT     *status.AtomicFloat
	statRate   *status.AtomicFloat
	statMode   *status.AtomicString
}

// NewSimulator validates cfg and creates a simulator seeded from cfg.Seed
// A nil logger discards output
func NewSimulator(cfg *parameter.Config, log *logrus.Logger) (*Simulator, error) {
	if cfg == nil {
		cfg = parameter.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}

	s := &Simulator{
		cfg:       *cfg,
		initial:   *cfg,
		log:       log,
		particles: particle.NewCollection(),
		stream:    token.NewStream(cfg.Stream.Window),
		recorder:  recorder.New(),
		queue:     frame.NewQueue(),
		acc:       diagnostics.NewAccumulators(),
		grid:      spatial.NewGrid(cfg.Physics.RCutoff),
	}
	s.SetSeed(cfg.Seed)
	s.ids = particle.NewIDSource(s.seed)
	return s, nil
}

// Queue returns the inbound frame queue for producers
func (s *Simulator) Queue() *frame.Queue {
	return s.queue
}

// Config returns a copy of the live configuration, including the current dt
func (s *Simulator) Config() parameter.Config {
	return s.cfg
}

// Mode returns the frame source mode
func (s *Simulator) Mode() Mode {
	return s.mode
}

// Seed returns the current seed
func (s *Simulator) Seed() uint64 {
	return s.seed
}

// SetSeed reseeds the random source used for spawn jitter and initial phase
// Particle IDs are re-namespaced only by Reset so existing handles stay unique
func (s *Simulator) SetSeed(seed uint64) {
	s.seed = seed
	s.rng = rand.New(rand.NewPCG(seed, seed))
}

// Reset drops particles, tokens and accumulators and restores the initial dt
// The recorder capture and mode are kept; RNG and ID source restart from the seed
func (s *Simulator) Reset() {
	s.particles.Reset()
	s.stream.Clear()
	s.acc.Reset()
	s.SetSeed(s.seed)
	s.ids = particle.NewIDSource(s.seed)
	s.cfg.Timestep.DT = s.initial.Timestep.DT
	s.energy = 0
	s.e0 = 0
	s.frameClock = 0
	s.idle = 0
	s.ticks = 0
	s.published = 0
	s.replayDone = false
}

// StartReplay resets the simulation and feeds it from the recorded frames
func (s *Simulator) StartReplay() {
	s.recorder.Stop()
	s.Reset()
	s.recorder.ResetReplay()
	s.mode = ModeReplay
	s.log.WithFields(logrus.Fields{"frames": s.recorder.Len(), "seed": s.seed}).Info("replay started")
}

// StartLive switches back to the inbound queue
func (s *Simulator) StartLive() {
	s.mode = ModeLive
	s.replayDone = false
}

// ReplayDone reports whether replay has consumed every recorded frame
func (s *Simulator) ReplayDone() bool {
	return s.mode == ModeReplay && s.replayDone
}

// StartRecording clears the capture and records every ingested frame
func (s *Simulator) StartRecording() {
	s.recorder.Start()
}

// StopRecording ends capture
func (s *Simulator) StopRecording() {
	s.recorder.Stop()
}

// Recording reports whether ingested frames are being captured
func (s *Simulator) Recording() bool {
	return s.recorder.Recording()
}

// RecordedFrames returns copies of the captured frames
func (s *Simulator) RecordedFrames() []*frame.AudioFrame {
	return s.recorder.Frames()
}

// SaveRecording writes the capture to w
func (s *Simulator) SaveRecording(w io.Writer) error {
	return s.recorder.Save(w)
}

// LoadRecording replaces the capture from r
func (s *Simulator) LoadRecording(r io.Reader) error {
	return s.recorder.Load(r)
}

// SaveRecordingFile writes the capture to path
func (s *Simulator) SaveRecordingFile(path string) error {
	return s.recorder.SaveFile(path)
}

// LoadRecordingFile replaces the capture from path
func (s *Simulator) LoadRecordingFile(path string) error {
	return s.recorder.LoadFile(path)
}

// SetEnergyBaseline sets E0 for drift reporting
func (s *Simulator) SetEnergyBaseline(e0 float64) {
	s.e0 = e0
}

// CaptureEnergyBaseline sets E0 to the current total energy and returns it
func (s *Simulator) CaptureEnergyBaseline() float64 {
	s.e0 = diagnostics.ComputeConservation(s.particles.All(), 0).ETotal
	return s.e0
}

// AddParticle inserts p; an empty ID is assigned from the ID source
// Not subject to the ingestion cap
func (s *Simulator) AddParticle(p *particle.Particle) (particle.ID, error) {
	if p == nil {
		return "", fmt.Errorf("add particle: nil particle")
	}
	if p.ID == "" {
		p.ID = s.ids.Next()
	}
	if err := s.particles.Add(p); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Particle returns a copy of the particle with id
func (s *Simulator) Particle(id particle.ID) (particle.Particle, bool) {
	p, ok := s.particles.Get(id)
	if !ok {
		return particle.Particle{}, false
	}
	return copyParticle(p), true
}

// Particles returns copies of every particle in insertion order
func (s *Simulator) Particles() []particle.Particle {
	all := s.particles.All()
	out := make([]particle.Particle, len(all))
	for i, p := range all {
		out[i] = copyParticle(p)
	}
	return out
}

// ParticleCount returns the population size
func (s *Simulator) ParticleCount() int {
	return s.particles.Len()
}

func copyParticle(p *particle.Particle) particle.Particle {
	c := *p
	c.Neighbors = append([]particle.ID(nil), p.Neighbors...)
	return c
}

// Ticks returns ticks completed since construction or Reset
func (s *Simulator) Ticks() uint64 {
	return s.ticks
}

// DT returns the current timestep
func (s *Simulator) DT() float64 {
	return s.cfg.Timestep.DT
}

// Tick advances the simulation by one step
// Drains at most MaxFramesPerTick frames, then integrates the population with the current dt
func (s *Simulator) Tick() {
	frames := s.nextFrames()
	for _, f := range frames {
		s.ingest(f)
	}
	if len(frames) > 0 {
		s.idle = 0
	}
	// Rate window closes on frame time plus simulated idle time
	s.stream.UpdateRate(s.frameClock + s.idle)

	dt := s.cfg.Timestep.DT
	if s.particles.Len() > 0 {
		s.step(dt)
	}
	s.idle += dt
	s.ticks++
	s.publish()
}

// nextFrames pulls this tick's frames from the queue or the recorder
func (s *Simulator) nextFrames() []*frame.AudioFrame {
	if s.mode == ModeLive {
		return s.queue.ConsumeUpTo(parameter.MaxFramesPerTick)
	}
	if s.replayDone {
		return nil
	}

	var out []*frame.AudioFrame
	exhausted := false
	for len(out) < parameter.MaxFramesPerTick {
		f, ok := s.recorder.Next()
		if !ok {
			exhausted = true
			break
		}
		out = append(out, f)
	}
	if exhausted || s.recorder.Remaining() == 0 {
		s.replayDone = true
		s.log.WithField("ticks", s.ticks+1).Info("replay exhausted")
	}
	return out
}

// step runs one integration pass over the population
// Order: neighbors, forces and potentials, Ω, x12/m12, θ, position, derived refresh, accumulators, dt
func (s *Simulator) step(dt float64) {
	ps := s.particles.All()
	phys := s.cfg.Physics

	positions := make([]vmath.Vec3F, len(ps))
	for i, p := range ps {
		positions[i] = p.Position
	}
	s.grid.Build(positions)

	// Cached lists are recomputed only when empty unless RefreshNeighbors is set
	// With gravity on the force pass below replaces them every tick
	for i, p := range ps {
		if !phys.GravEnabled && (phys.RefreshNeighbors || len(p.Neighbors) == 0) {
			p.Neighbors = s.queryNeighbors(ps, i)
		}
	}

	for i, p := range ps {
		p.HasAccel = false
		if phys.GravEnabled {
			// Gravity queries the current grid and replaces the cached list
			p.Neighbors = s.queryNeighbors(ps, i)
			fresh := s.particles.Resolve(p.Neighbors)
			p.Accel = physics.SoftenedGravityAccel(p, fresh, phys.G, phys.Epsilon)
			p.HasAccel = true
			p.UGrav = physics.SoftenedGravityPotential(p, fresh, phys.G, phys.Epsilon)
		} else {
			p.Accel = vmath.Vec3F{}
			p.UGrav = 0
		}

		if phys.DMEnabled {
			p.UDm = physics.DarkMatterPotential(p.Position, p.Mass, phys.G, s.cfg.DarkMatter.Rho0, s.cfg.DarkMatter.Rs)
		} else {
			p.UDm = 0
		}
	}

	for _, p := range ps {
		p.Omega = physics.SynapticStrength(p, s.particles.Resolve(p.Neighbors), phys, s.cfg.Adaptive.SigmaSimilarity)
	}

	for _, p := range ps {
		physics.StepAdaptive(p, dt, s.cfg.Adaptive.K, s.cfg.Adaptive.Gamma)
		physics.StepMemory(p, dt, s.cfg.Adaptive.Alpha)
	}

	// In place, insertion order: later particles see earlier updated phases
	for _, p := range ps {
		physics.StepPhase(p, s.particles.Resolve(p.Neighbors), s.cfg.Sync.KSync, parameter.Planck, dt)
	}

	flow := physics.ModulatedFlow(s.energy, s.cfg.Audio.Sensitivity)
	for _, p := range ps {
		physics.Integrate(p, flow, phys.BlendLorenz, phys.GravEnabled, dt)
	}

	for _, p := range ps {
		p.RefreshEnergy()
		p.Nu = physics.NaturalFrequency(p.Ec, parameter.Planck)
		p.RefreshProjection()
	}

	s.acc.Update(ps, dt, phys.VRef)

	if s.cfg.Timestep.Adaptive {
		s.cfg.Timestep.DT = physics.AdaptiveTimestep(ps, s.particles, s.cfg.Timestep)
	}
}

// queryNeighbors returns handles of particles within the cutoff of ps[i]
func (s *Simulator) queryNeighbors(ps []*particle.Particle, i int) []particle.ID {
	s.neighborBuf = s.grid.Query(i, s.cfg.Physics.RCutoff, s.neighborBuf[:0])
	if len(s.neighborBuf) == 0 {
		return nil
	}
	ids := make([]particle.ID, len(s.neighborBuf))
	for k, j := range s.neighborBuf {
		ids[k] = ps[j].ID
	}
	return ids
}

// ComputePsi returns the Ψ breakdown of the current population
func (s *Simulator) ComputePsi() diagnostics.Psi {
	return diagnostics.ComputePsi(s.particles.All(), s.acc, s.cfg.Physics.ERef)
}

// Conservation returns energy, momentum and drift against the baseline
func (s *Simulator) Conservation() diagnostics.Conservation {
	return diagnostics.ComputeConservation(s.particles.All(), s.e0)
}

// Virial returns the virial ratio of the population
func (s *Simulator) Virial() diagnostics.Virial {
	return diagnostics.ComputeVirial(s.particles.All())
}

// Sync returns the Kuramoto order parameter of the population
func (s *Simulator) Sync() diagnostics.Sync {
	return diagnostics.ComputeSync(s.particles.All())
}

// Snapshot assembles a read-only diagnostics view
func (s *Simulator) Snapshot() *diagnostics.Snapshot {
	psi := s.ComputePsi()
	ps := s.particles.All()

	points := make([][2]float64, len(ps))
	for i, p := range ps {
		points[i] = [2]float64{p.Projection.Pos[0], p.Projection.Pos[1]}
	}

	return &diagnostics.Snapshot{
		Tick:          s.ticks,
		Mode:          s.mode.String(),
		Seed:          s.seed,
		ParticleCount: len(ps),
		TokenCount:    s.stream.Len(),
		TokenRate:     s.stream.Rate(),
		DT:            s.cfg.Timestep.DT,
		DroppedFrames: s.queue.Dropped(),
		Psi:           psi,
		Anomalies:     diagnostics.Anomalies(psi),
		Sync:          s.Sync(),
		Conservation:  s.Conservation(),
		Virial:        s.Virial(),
		Emergence:     diagnostics.ComputeEmergence(ps),
		Points:        points,
	}
}

// Tokens returns a copy of every token emitted since the last Reset
func (s *Simulator) Tokens() []token.Token {
	return s.stream.Tokens()
}

// TokenRate returns the last computed emission rate
func (s *Simulator) TokenRate() float64 {
	return s.stream.Rate()
}

// DrainTokens returns tokens emitted since the previous call
func (s *Simulator) DrainTokens() []token.Token {
	out := s.stream.Since(s.published)
	s.published = s.stream.Len()
	return out
}

// ExportTokens writes the token stream with run metadata
func (s *Simulator) ExportTokens(w io.Writer, exportDate string) error {
	return s.stream.Export(w, s.exportMetadata(exportDate))
}

// ExportTokensFile writes the token stream with run metadata to path
func (s *Simulator) ExportTokensFile(path, exportDate string) error {
	return s.stream.ExportFile(path, s.exportMetadata(exportDate))
}

func (s *Simulator) exportMetadata(exportDate string) token.Metadata {
	return token.Metadata{
		ExportDate:          exportDate,
		TotalTokens:         s.stream.Len(),
		TokenGenerationRate: s.stream.Rate(),
		Engine:              EngineName,
		Version:             Version,
		Mode:                s.mode.String(),
		Seed:                s.seed,
		ParticleCount:       s.particles.Len(),
		Physics: token.PhysicsSummary{
			BlendLorenz: s.cfg.Physics.BlendLorenz,
			GravEnabled: s.cfg.Physics.GravEnabled,
			DMEnabled:   s.cfg.Physics.DMEnabled,
		},
	}
}

// AttachStatus publishes per-tick metrics and snapshots to reg
func (s *Simulator) AttachStatus(reg *status.Registry) {
	s.statusReg = reg
	s.statTicks = reg.Ints.Get(status.KeyTicks)
	s.statCount = reg.Ints.Get(status.KeyParticles)
	s.statTokens = reg.Ints.Get(status.KeyTokenCount)
	s.statDrop = reg.Ints.Get(status.KeyDroppedFrames)
	s.statPsi = reg.Floats.Get(status.KeyPsiTotal)
	s.statSyncR = reg.Floats.Get(status.KeySyncR)
	s.statDT = reg.Floats.Get(status.KeyDT)
	s.statRate = reg.Floats.Get(status.KeyTokenRate)
	s.statMode = reg.Strings.Get(status.KeyMode)
}

// PublishSnapshot stores a fresh snapshot in the attached registry and returns it
func (s *Simulator) PublishSnapshot() *diagnostics.Snapshot {
	snap := s.Snapshot()
	if s.statusReg != nil {
		s.statusReg.StoreSnapshot(snap)
		s.statPsi.Set(snap.Psi.Total)
		s.statSyncR.Set(snap.Sync.R)
	}
	return snap
}

// publish writes cheap scalar metrics after each tick
func (s *Simulator) publish() {
	if s.statusReg == nil {
		return
	}
	s.statTicks.Store(int64(s.ticks))
	s.statCount.Store(int64(s.particles.Len()))
	s.statTokens.Store(int64(s.stream.Len()))
	s.statDrop.Store(int64(s.queue.Dropped()))
	s.statDT.Set(s.cfg.Timestep.DT)
	s.statRate.Set(s.stream.Rate())
	s.statMode.Store(s.mode.String())
}

// ingest records f, emits its tokens and drives particle creation and retuning
func (s *Simulator) ingest(f *frame.AudioFrame) {
	if f == nil {
		return
	}
	s.recorder.Add(f)
	if f.Timestamp > s.frameClock {
		s.frameClock = f.Timestamp
	}

	s.stream.Add(token.NewAudioFrame(s.stream.Len(), f, s.seed))
	for i := range f.HarmonicPairs() {
		s.stream.Add(token.NewPhiHarmonic(s.stream.Len(), f.Timestamp, f.Harmonics[i], f.FrequencyData[i].Magnitude, i))
	}

	if len(f.FrequencyData) == 0 {
		return
	}
	s.energy = f.RMSEnergy

	candidates := f.FrequencyData[:min(len(f.FrequencyData), parameter.CreationCandidates)]
	for _, bin := range candidates {
		if s.particles.Len() >= parameter.MaxParticles {
			break
		}
		if bin.Magnitude > parameter.CreationMagnitudeThreshold {
			s.spawn(f.Timestamp, bin)
		}
	}

	for i, bin := range f.FrequencyData {
		if i >= s.particles.Len() {
			break
		}
		s.retune(f.Timestamp, s.particles.At(i), bin)
	}
}

// spawn creates a particle jittered around the origin from a salient bin
// RNG order: x, y, z, θ
func (s *Simulator) spawn(ts float64, bin frame.FrequencyBin) {
	pos := vmath.Vec3F{
		X: s.jitter(),
		Y: s.jitter(),
		Z: s.jitter(),
	}
	theta := s.rng.Float64() * 2 * math.Pi

	p := particle.New(s.ids.Next(), pos, bin.Frequency, theta)
	p.Mass = 1 + bin.Magnitude*parameter.AudioMassScale
	p.Ec = bin.Magnitude * parameter.AudioEnergyScale

	if err := s.particles.Add(p); err != nil {
		s.log.WithError(err).Warn("spawn rejected")
		return
	}
	s.stream.Add(token.NewParticleEvent(s.stream.Len(), ts, token.EventAudioCreation, p))
}

func (s *Simulator) jitter() float64 {
	return s.rng.Float64()*2*parameter.SpawnHalfExtent - parameter.SpawnHalfExtent
}

// retune assigns bin to p and rescales its mass and energy
func (s *Simulator) retune(ts float64, p *particle.Particle, bin frame.FrequencyBin) {
	p.Frequency = bin.Frequency
	p.Mass = max(1, p.Mass*(0.95+bin.Magnitude*0.1))
	p.Ec = bin.Magnitude * parameter.AudioEnergyScale
	s.stream.Add(token.NewFrequencyUpdate(s.stream.Len(), ts, p.ID, bin))
}
