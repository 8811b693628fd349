package monitor

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/status"
)

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

// rowText reads back one screen row
func rowText(s tcell.Screen, y, w int) string {
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func screenText(s tcell.Screen, w, h int) string {
	var b strings.Builder
	for y := 0; y < h; y++ {
		b.WriteString(rowText(s, y, w))
		b.WriteByte('\n')
	}
	return b.String()
}

func countRune(s tcell.Screen, w, h int, want rune) int {
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if r, _, _, _ := s.GetContent(x, y); r == want {
				n++
			}
		}
	}
	return n
}

// TestDrawWaiting verifies the placeholder before any snapshot
func TestDrawWaiting(t *testing.T) {
	screen := newSimScreen(t, 80, 24)
	reg := status.NewRegistry()
	reg.Strings.Get(status.KeyMode).Store("live")

	m := New(screen, reg, 0)
	m.Draw()

	text := screenText(screen, 80, 24)
	if !strings.Contains(text, "synapse monitor") {
		t.Error("Expected title")
	}
	if !strings.Contains(text, "waiting for first snapshot") {
		t.Error("Expected waiting message")
	}
	if !strings.Contains(rowText(screen, 1, 80), "mode live") {
		t.Errorf("Expected mode on row 1, got %q", rowText(screen, 1, 80))
	}
}

// TestDrawSnapshot verifies metrics, anomalies and plotted points
func TestDrawSnapshot(t *testing.T) {
	screen := newSimScreen(t, 100, 30)
	reg := status.NewRegistry()
	reg.Ints.Get(status.KeyTicks).Store(42)
	reg.Ints.Get(status.KeyParticles).Store(3)

	reg.StoreSnapshot(&diagnostics.Snapshot{
		Tick:          42,
		ParticleCount: 3,
		Psi:           diagnostics.Psi{Total: 12.5},
		Anomalies:     []diagnostics.NamedValue{{Name: "psiTotal", Value: math.Inf(1)}},
		Sync:          diagnostics.Sync{R: 0.75},
		Emergence:     diagnostics.Emergence{Phi: 0.25, Hierarchy: diagnostics.Hierarchy{Levels: 2}, Emergent: true},
		Points:        [][2]float64{{0, 0}, {1, 1}, {-1, 0.5}},
	})

	m := New(screen, reg, 0)
	m.Draw()

	text := screenText(screen, 100, 30)
	for _, want := range []string{"tick 42", "particles 3", "Ψ 12.5", "R 0.750", "Φ 0.250 L2 emergent", "anomaly: psiTotal=+Inf", "projection"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q on screen", want)
		}
	}
	if got := countRune(screen, 100, 30, '●'); got != 3 {
		t.Errorf("Expected 3 plotted points, got %d", got)
	}
	if m.Frames() != 1 {
		t.Errorf("Expected 1 frame, got %d", m.Frames())
	}
}

// TestTrailsFade verifies previous positions leave decaying trails
func TestTrailsFade(t *testing.T) {
	screen := newSimScreen(t, 60, 30)
	reg := status.NewRegistry()
	reg.StoreSnapshot(&diagnostics.Snapshot{Points: [][2]float64{{0, 0}, {1, 1}}})

	m := New(screen, reg, 0)
	m.Draw()

	reg.StoreSnapshot(&diagnostics.Snapshot{Points: [][2]float64{{0, 1}, {1, 0}}})
	m.Draw()
	if got := countRune(screen, 60, 30, '·'); got != 2 {
		t.Errorf("Expected 2 trail cells, got %d", got)
	}

	// Trails decay below the floor after enough frames without movement history
	reg.StoreSnapshot(&diagnostics.Snapshot{})
	for range 10 {
		m.Draw()
	}
	if got := countRune(screen, 60, 30, '·'); got != 0 {
		t.Errorf("Expected trails to vanish, got %d", got)
	}
}

// TestSingularPointCentered verifies a degenerate extent does not divide by zero
func TestSingularPointCentered(t *testing.T) {
	if got := scale(5, 5, 5); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}
	if got := scale(math.NaN(), 0, 1); got != 0.5 {
		t.Errorf("Expected 0.5 for NaN, got %f", got)
	}
	if got := scale(2, 0, 4); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

// TestRunQuitKey verifies q ends Run with ErrQuit
func TestRunQuitKey(t *testing.T) {
	screen := newSimScreen(t, 80, 24)
	m := New(screen, status.NewRegistry(), 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if !errors.Is(err, ErrQuit) {
			t.Errorf("Expected ErrQuit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after q")
	}
}

// TestRunCancel verifies context cancellation ends Run cleanly
func TestRunCancel(t *testing.T) {
	screen := newSimScreen(t, 80, 24)
	m := New(screen, status.NewRegistry(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.Frames() < 2 {
		t.Errorf("Expected periodic redraws, got %d", m.Frames())
	}
}
