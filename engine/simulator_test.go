package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/status"
	"github.com/lixenwraith/synapse/token"
	"github.com/lixenwraith/synapse/vmath"
)

func newTestSimulator(t *testing.T, mutate func(*parameter.Config)) *Simulator {
	t.Helper()
	cfg := parameter.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	sim, err := NewSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	return sim
}

// toneFrame builds a frame with n bins whose magnitudes decay from mag
func toneFrame(ts float64, n int, mag float64) *frame.AudioFrame {
	f := &frame.AudioFrame{
		Timestamp:        ts,
		RMSEnergy:        0.2 + 0.1*math.Sin(ts),
		SpectralCentroid: 600,
	}
	for i := 0; i < n; i++ {
		f.FrequencyData = append(f.FrequencyData, frame.FrequencyBin{
			Frequency: 220 * float64(i+1),
			Magnitude: mag / float64(i+1),
		})
		f.Harmonics = append(f.Harmonics, 220*math.Pow(parameter.Phi, float64(i)/2))
	}
	return f
}

func countType(tokens []token.Token, typ token.Type) int {
	n := 0
	for _, tk := range tokens {
		if tk.Type == typ {
			n++
		}
	}
	return n
}

func TestEmptyFrameEmitsSingleToken(t *testing.T) {
	sim := newTestSimulator(t, nil)
	sim.Queue().Push(&frame.AudioFrame{Timestamp: 1, Harmonics: []float64{440, 712}})
	sim.Tick()

	tokens := sim.Tokens()
	if len(tokens) != 1 || tokens[0].Type != token.TypeAudioFrame {
		t.Fatalf("Expected exactly one audio_frame token, got %v", tokens)
	}
	if sim.ParticleCount() != 0 {
		t.Errorf("Empty frame must not create particles")
	}
}

func TestIngestionTokens(t *testing.T) {
	sim := newTestSimulator(t, nil)
	sim.Queue().Push(toneFrame(0.5, 3, 0.9))
	sim.Tick()

	tokens := sim.Tokens()
	// 1 summary + 3 harmonics + 3 creations (0.9, 0.45, 0.3) + 3 retunes
	if countType(tokens, token.TypeAudioFrame) != 1 ||
		countType(tokens, token.TypePhiHarmonic) != 3 ||
		countType(tokens, token.TypeParticleEvent) != 3 ||
		countType(tokens, token.TypeFrequencyUpdate) != 3 {
		t.Errorf("Unexpected token mix: %d tokens", len(tokens))
	}

	seen := make(map[string]bool)
	for _, tk := range tokens {
		if seen[tk.ID] {
			t.Errorf("Duplicate token id %s", tk.ID)
		}
		seen[tk.ID] = true
		if tk.Timestamp != 0.5 {
			t.Errorf("Token %s should carry the frame timestamp", tk.ID)
		}
	}

	p := sim.Particles()[0]
	// Created with 1 + 0.9*5 then retuned by 0.95 + 0.09
	if want := (1 + 0.9*5) * (0.95 + 0.9*0.1); math.Abs(p.Mass-want) > 1e-12 {
		t.Errorf("Mass: got %v, want %v", p.Mass, want)
	}
	if p.Frequency != 220 {
		t.Errorf("Frequency: got %v", p.Frequency)
	}
}

func TestCreationThreshold(t *testing.T) {
	sim := newTestSimulator(t, nil)
	f := &frame.AudioFrame{
		Timestamp: 0,
		FrequencyData: []frame.FrequencyBin{
			{Frequency: 100, Magnitude: 0.1},
			{Frequency: 200, Magnitude: 0.11},
		},
	}
	sim.Queue().Push(f)
	sim.Tick()
	if sim.ParticleCount() != 1 {
		t.Errorf("Only magnitudes above 0.1 spawn, got %d particles", sim.ParticleCount())
	}
}

func TestParticleCap(t *testing.T) {
	sim := newTestSimulator(t, nil)
	for i := 0; i < 12; i++ {
		sim.Queue().Push(toneFrame(float64(i)*0.05, 5, 0.9))
	}
	sim.Tick()
	sim.Tick()

	if sim.ParticleCount() != parameter.MaxParticles {
		t.Errorf("Expected %d particles, got %d", parameter.MaxParticles, sim.ParticleCount())
	}
	if n := countType(sim.Tokens(), token.TypeParticleEvent); n != parameter.MaxParticles {
		t.Errorf("Expected %d creation tokens, got %d", parameter.MaxParticles, n)
	}
}

func TestFramesPerTickBound(t *testing.T) {
	sim := newTestSimulator(t, nil)
	for i := 0; i < 25; i++ {
		sim.Queue().Push(&frame.AudioFrame{Timestamp: float64(i)})
	}
	sim.Tick()
	if n := len(sim.Tokens()); n != parameter.MaxFramesPerTick {
		t.Errorf("Expected %d frames ingested, got %d", parameter.MaxFramesPerTick, n)
	}
	if sim.Queue().Len() != 15 {
		t.Errorf("Excess frames should wait, %d queued", sim.Queue().Len())
	}
}

func TestStateBoundsOverTicks(t *testing.T) {
	sim := newTestSimulator(t, func(c *parameter.Config) {
		c.Physics.GravEnabled = true
		c.Physics.DMEnabled = true
		c.Physics.G = 1
		c.Adaptive.K = 50
	})
	dtMax := sim.Config().Timestep.DTMax

	for tick := 0; tick < 300; tick++ {
		if tick%3 == 0 {
			sim.Queue().Push(toneFrame(float64(tick)*0.05, 6, 1))
		}
		sim.Tick()

		if dt := sim.DT(); dt < parameter.MinTimestep || dt > dtMax {
			t.Fatalf("tick %d: dt %v out of bounds", tick, dt)
		}
		for _, p := range sim.Particles() {
			if p.Theta < 0 || p.Theta >= 2*math.Pi {
				t.Fatalf("tick %d: θ %v out of range", tick, p.Theta)
			}
			if p.X12 < -1 || p.X12 > 1 {
				t.Fatalf("tick %d: x12 %v out of range", tick, p.X12)
			}
			for i := 0; i < 3; i++ {
				if math.Abs(p.Position.Component(i)) > parameter.PositionLimit {
					t.Fatalf("tick %d: position %v out of range", tick, p.Position)
				}
			}
		}
	}
}

func TestTwoBodyGravity(t *testing.T) {
	const G = 6.674e-11
	sim := newTestSimulator(t, func(c *parameter.Config) {
		c.Physics.GravEnabled = true
		c.Physics.Epsilon = 0.1
		c.Physics.G = G
	})

	a, _ := sim.AddParticle(particle.New("", vmath.Vec3F{}, 0, 0))
	b, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 1}, 0, 0))
	sim.Tick()

	want := -G / math.Sqrt(1.01)
	pa, _ := sim.Particle(a)
	pb, _ := sim.Particle(b)
	if math.Abs(pa.UGrav-want) > 1e-20 || math.Abs(pb.UGrav-want) > 1e-20 {
		t.Errorf("U_grav: got %v and %v, want %v", pa.UGrav, pb.UGrav, want)
	}
	if !pa.HasAccel || pa.Accel.X <= 0 || pb.Accel.X >= 0 {
		t.Errorf("Accelerations should point at each other: %v %v", pa.Accel, pb.Accel)
	}
	if math.Abs(pa.Accel.X+pb.Accel.X) > 1e-24 {
		t.Errorf("Equal masses should give equal magnitude: %v %v", pa.Accel.X, pb.Accel.X)
	}
}

func TestGravityDisabledClearsPotential(t *testing.T) {
	sim := newTestSimulator(t, nil)
	p := particle.New("", vmath.Vec3F{X: 1}, 0, 0)
	p.UGrav = -5
	p.HasAccel = true
	sim.AddParticle(p)
	sim.Tick()

	got := sim.Particles()[0]
	if got.UGrav != 0 || got.UDm != 0 || got.HasAccel {
		t.Errorf("Disabled forces should reset state: %+v", got)
	}
}

func TestStaleNeighborCache(t *testing.T) {
	for _, refresh := range []bool{false, true} {
		sim := newTestSimulator(t, func(c *parameter.Config) {
			c.Physics.RefreshNeighbors = refresh
		})
		a, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 0.1}, 0, 0))
		b, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 0.2}, 0, 0))
		sim.Tick()

		c, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 0.3}, 0, 0))
		sim.Tick()

		pa, _ := sim.Particle(a)
		pc, _ := sim.Particle(c)
		if !slices.Contains(pa.Neighbors, b) {
			t.Errorf("refresh=%v: a should keep b", refresh)
		}
		if got := slices.Contains(pa.Neighbors, c); got != refresh {
			t.Errorf("refresh=%v: a has c = %v", refresh, got)
		}
		if !slices.Contains(pc.Neighbors, a) || !slices.Contains(pc.Neighbors, b) {
			t.Errorf("refresh=%v: new particle should query fresh neighbors, got %v", refresh, pc.Neighbors)
		}
	}
}

// TestGravityRefreshesNeighbors verifies the gravity pass replaces cached lists,
// so Ω and θ see the same neighbors that produced U_grav
func TestGravityRefreshesNeighbors(t *testing.T) {
	sim := newTestSimulator(t, func(c *parameter.Config) {
		c.Physics.GravEnabled = true
		c.Timestep.Adaptive = false
	})
	a, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 0.1}, 0, 0))
	b, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: 0.2}, 0, 0))
	sim.Tick()

	pa, _ := sim.Particle(a)
	c, _ := sim.AddParticle(particle.New("", vmath.Vec3F{X: pa.Position.X + 0.2, Y: pa.Position.Y, Z: pa.Position.Z}, 0, 0))
	sim.Tick()

	pa, _ = sim.Particle(a)
	if !slices.Contains(pa.Neighbors, b) || !slices.Contains(pa.Neighbors, c) {
		t.Errorf("Expected a's neighbors to include b and c, got %v", pa.Neighbors)
	}
	if pa.UGrav >= 0 {
		t.Errorf("Expected negative U_grav, got %v", pa.UGrav)
	}
}

// TestTokenRateDecaysWhenIdle verifies the rate window keeps moving after frames stop
func TestTokenRateDecaysWhenIdle(t *testing.T) {
	sim := newTestSimulator(t, func(c *parameter.Config) {
		c.Timestep.Adaptive = false
	})
	reg := status.NewRegistry()
	sim.AttachStatus(reg)

	for i := 0; i < 10; i++ {
		sim.Queue().Push(&frame.AudioFrame{Timestamp: float64(i) * 0.1})
	}
	sim.Tick()
	if sim.TokenRate() <= 0 {
		t.Fatalf("Expected positive rate after frames, got %v", sim.TokenRate())
	}

	// 2s window at dt=0.005 needs 400 idle ticks
	for i := 0; i < 1000; i++ {
		sim.Tick()
	}
	if sim.TokenRate() != 0 {
		t.Errorf("Expected rate 0 after idle window, got %v", sim.TokenRate())
	}
	if got := reg.Floats.Get(status.KeyTokenRate).Get(); got != 0 {
		t.Errorf("Expected published rate 0, got %v", got)
	}

	var buf bytes.Buffer
	if err := sim.ExportTokens(&buf, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	doc, err := token.ReadExport(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Metadata.TokenGenerationRate != 0 {
		t.Errorf("Expected exported rate 0, got %v", doc.Metadata.TokenGenerationRate)
	}

	// New frames restart the window from the frame clock
	sim.Queue().Push(&frame.AudioFrame{Timestamp: 1.0})
	sim.Tick()
	if sim.TokenRate() <= 0 {
		t.Errorf("Expected rate to recover after a new frame, got %v", sim.TokenRate())
	}
}

// TestCreationTokenCarriesZeroNu verifies ν is left for the tick to derive
func TestCreationTokenCarriesZeroNu(t *testing.T) {
	sim := newTestSimulator(t, nil)
	sim.Queue().Push(toneFrame(0, 1, 0.9))
	sim.Tick()

	for _, tk := range sim.Tokens() {
		if tk.Type != token.TypeParticleEvent {
			continue
		}
		if p := tk.Payload.(*token.ParticleEventPayload); p.Nu != 0 {
			t.Errorf("Creation token should carry ν=0, got %v", p.Nu)
		}
	}
	if p := sim.Particles()[0]; p.Nu <= 0 {
		t.Errorf("Tick should derive ν, got %v", p.Nu)
	}
}

// replayRun feeds a saved recording through a fresh simulator and returns its token JSON and Ψ trajectory
func replayRun(t *testing.T, recording []byte) ([]byte, []uint64) {
	t.Helper()
	sim := newTestSimulator(t, func(c *parameter.Config) {
		c.Physics.GravEnabled = true
		c.Physics.DMEnabled = true
	})
	if err := sim.LoadRecording(bytes.NewReader(recording)); err != nil {
		t.Fatalf("LoadRecording failed: %v", err)
	}
	sim.StartReplay()

	var psi []uint64
	for i := 0; i < 1000 && !sim.ReplayDone(); i++ {
		sim.Tick()
		psi = append(psi, math.Float64bits(sim.ComputePsi().Total))
	}
	if !sim.ReplayDone() {
		t.Fatal("Replay did not finish")
	}

	data, err := json.Marshal(sim.Tokens())
	if err != nil {
		t.Fatalf("Marshal tokens failed: %v", err)
	}
	return data, psi
}

func TestReplayDeterminism(t *testing.T) {
	live := newTestSimulator(t, nil)
	live.StartRecording()
	for i := 0; i < 40; i++ {
		live.Queue().Push(toneFrame(float64(i)*0.1, 1+i%6, 0.95))
		live.Tick()
	}
	live.StopRecording()
	if n := len(live.RecordedFrames()); n != 40 {
		t.Fatalf("Expected 40 recorded frames, got %d", n)
	}

	var buf bytes.Buffer
	if err := live.SaveRecording(&buf); err != nil {
		t.Fatalf("SaveRecording failed: %v", err)
	}

	tokensA, psiA := replayRun(t, buf.Bytes())
	tokensB, psiB := replayRun(t, buf.Bytes())

	if !bytes.Equal(tokensA, tokensB) {
		t.Error("Token streams differ between replays")
	}
	if !slices.Equal(psiA, psiB) {
		t.Error("Ψ trajectories differ between replays")
	}
	if len(psiA) != 4 {
		t.Errorf("40 frames at 10 per tick should take 4 ticks, took %d", len(psiA))
	}
}

func TestReplayResetsState(t *testing.T) {
	sim := newTestSimulator(t, nil)
	sim.StartRecording()
	sim.Queue().Push(toneFrame(0, 2, 0.8))
	sim.Tick()
	before := sim.Tokens()

	sim.StartReplay()
	if sim.Mode() != ModeReplay || len(sim.Tokens()) != 0 || sim.ParticleCount() != 0 {
		t.Fatal("StartReplay should clear tokens and particles")
	}
	if sim.Recording() {
		t.Error("Recording must stop during replay")
	}

	sim.Tick()
	after := sim.Tokens()
	a, _ := json.Marshal(before)
	b, _ := json.Marshal(after)
	if !bytes.Equal(a, b) {
		t.Errorf("Replay of the live run should reproduce its tokens:\n%s\n%s", a, b)
	}

	sim.Tick()
	if !sim.ReplayDone() {
		t.Error("Replay should report exhaustion")
	}
	sim.StartLive()
	if sim.ReplayDone() || sim.Mode() != ModeLive {
		t.Error("StartLive should leave replay mode")
	}
}

func TestDrainTokens(t *testing.T) {
	sim := newTestSimulator(t, nil)
	sim.Queue().Push(&frame.AudioFrame{Timestamp: 0})
	sim.Tick()
	if n := len(sim.DrainTokens()); n != 1 {
		t.Errorf("Expected 1 new token, got %d", n)
	}
	if sim.DrainTokens() != nil {
		t.Error("Second drain should be empty")
	}
	sim.Queue().Push(&frame.AudioFrame{Timestamp: 1})
	sim.Tick()
	if got := sim.DrainTokens(); len(got) != 1 || got[0].ID != "audio_frame_1" {
		t.Errorf("Unexpected drain %v", got)
	}
}

func TestEnergyBaselineDrift(t *testing.T) {
	sim := newTestSimulator(t, nil)
	p := particle.New("", vmath.Vec3F{X: 1}, 0, 0)
	p.Velocity = vmath.Vec3F{X: 2}
	sim.AddParticle(p)

	e0 := sim.CaptureEnergyBaseline()
	if e0 != 2 {
		t.Fatalf("Baseline: got %v, want 2", e0)
	}
	if d := sim.Conservation().DriftE; d != 0 {
		t.Errorf("Drift at baseline should be 0, got %v", d)
	}
	sim.SetEnergyBaseline(4)
	if d := sim.Conservation().DriftE; math.Abs(d-0.5) > 1e-12 {
		t.Errorf("Drift: got %v, want 0.5", d)
	}
}

func TestStatusPublishing(t *testing.T) {
	sim := newTestSimulator(t, nil)
	reg := status.NewRegistry()
	sim.AttachStatus(reg)

	sim.Queue().Push(toneFrame(0, 2, 0.9))
	sim.Tick()
	snap := sim.PublishSnapshot()

	if reg.Ints.Get(status.KeyTicks).Load() != 1 {
		t.Error("Tick count not published")
	}
	if reg.Ints.Get(status.KeyParticles).Load() != 2 {
		t.Error("Particle count not published")
	}
	if reg.Strings.Get(status.KeyMode).Load() != "live" {
		t.Error("Mode not published")
	}
	if reg.Snapshot() != snap || snap.ParticleCount != 2 || len(snap.Points) != 2 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestExportMetadata(t *testing.T) {
	sim := newTestSimulator(t, func(c *parameter.Config) { c.Seed = 7 })
	sim.Queue().Push(toneFrame(0, 1, 0.5))
	sim.Tick()

	var buf bytes.Buffer
	if err := sim.ExportTokens(&buf, "2025-01-01T00:00:00Z"); err != nil {
		t.Fatalf("ExportTokens failed: %v", err)
	}
	doc, err := token.ReadExport(&buf)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	m := doc.Metadata
	if m.Seed != 7 || m.Engine != EngineName || m.Mode != "live" || m.ParticleCount != 1 || m.TotalTokens != len(doc.Tokens) {
		t.Errorf("Unexpected metadata %+v", m)
	}
	if p := doc.Tokens[0].Payload.(*token.AudioFramePayload); p.Seed != 7 {
		t.Errorf("audio_frame token should carry the seed, got %d", p.Seed)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := parameter.DefaultConfig()
	cfg.Physics.RCutoff = 0
	if _, err := NewSimulator(cfg, nil); err == nil {
		t.Error("Expected validation error")
	}
}
