// Package monitor renders a live terminal readout of the simulation diagnostics.
// It only reads status.Registry, never engine state.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/synapse/core"
	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/status"
)

// ErrQuit is returned by Run when the user closes the monitor
var ErrQuit = errors.New("monitor closed by user")

const (
	// DefaultInterval is the redraw period
	DefaultInterval = 100 * time.Millisecond

	headerRows   = 9
	trailDecay   = 0.6
	trailMinimum = 0.1
)

var (
	styleLabel   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleAnomaly = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBorder  = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
)

// pointColors cycles per particle index
var pointColors = []tcell.Color{
	tcell.ColorGreen, tcell.ColorBlue, tcell.ColorYellow, tcell.ColorPurple, tcell.ColorTeal, tcell.ColorOrange,
}

type trail struct {
	x, y      int
	intensity float64
}

// Monitor draws the latest snapshot and metrics on a tcell screen
type Monitor struct {
	screen   tcell.Screen
	reg      *status.Registry
	interval time.Duration

	width, height int
	trails        []trail
	last          []cell
	frames        uint64
}

type cell struct{ x, y int }

// NewScreen creates and initializes a terminal screen, registering a crash hook to restore the terminal
func NewScreen() (tcell.Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	core.OnCrash(screen.Fini)
	return screen, nil
}

// New binds a monitor to an initialized screen
// interval <= 0 selects DefaultInterval
func New(screen tcell.Screen, reg *status.Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		screen:   screen,
		reg:      reg,
		interval: interval,
	}
	m.width, m.height = screen.Size()
	return m
}

// Frames returns how many redraws have happened
func (m *Monitor) Frames() uint64 { return m.frames }

// Run redraws until ctx is done or the user quits with q, Esc or Ctrl-C
// The caller owns the screen and must Fini it afterwards
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	core.Go(func() {
		for {
			ev := m.screen.PollEvent()
			if ev == nil {
				return // Screen finalized
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	})

	m.Draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !m.handleEvent(ev) {
				return ErrQuit
			}
		case <-ticker.C:
			m.Draw()
		}
	}
}

func (m *Monitor) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
			return false
		}
	case *tcell.EventResize:
		m.width, m.height = m.screen.Size()
		m.trails = nil
		m.last = nil
		m.screen.Sync()
	}
	return true
}

// Draw renders one frame
func (m *Monitor) Draw() {
	m.screen.Clear()
	m.frames++

	snap := m.reg.Snapshot()
	m.drawHeader(snap)
	if snap != nil {
		m.drawScatter(snap.Points)
	}

	m.screen.Show()
}

func (m *Monitor) drawHeader(snap *diagnostics.Snapshot) {
	ints, floats, strs := m.reg.Ints, m.reg.Floats, m.reg.Strings

	m.text(0, 0, styleTitle, "synapse monitor")
	m.pairs(1,
		"mode", strs.Get(status.KeyMode).Load(),
		"tick", fmt.Sprint(ints.Get(status.KeyTicks).Load()),
		"particles", fmt.Sprint(ints.Get(status.KeyParticles).Load()),
		"peers", fmt.Sprint(ints.Get(status.KeyPeers).Load()),
	)
	m.pairs(2,
		"tokens", fmt.Sprint(ints.Get(status.KeyTokenCount).Load()),
		"rate", fmt.Sprintf("%.1f/s", floats.Get(status.KeyTokenRate).Get()),
		"dt", fmt.Sprintf("%.4g", floats.Get(status.KeyDT).Get()),
		"dropped", fmt.Sprint(ints.Get(status.KeyDroppedFrames).Load()),
	)

	if snap == nil {
		m.text(0, 4, styleLabel, "waiting for first snapshot")
		return
	}

	m.pairs(3,
		"Ψ", fmt.Sprintf("%.6g", snap.Psi.Total),
		"R", fmt.Sprintf("%.3f", snap.Sync.R),
		"θ", fmt.Sprintf("%.3f", snap.Sync.MeanTheta),
		"Φ", emergenceText(snap.Emergence),
	)
	terms := snap.Psi.Terms.Named()
	for i, nv := range terms {
		row := 4 + i/3
		col := (i % 3) * (m.width / 3)
		m.pairAt(col, row, nv.Name, fmt.Sprintf("%.4g", nv.Value))
	}
	m.pairs(6,
		"E", fmt.Sprintf("%.6g", snap.Conservation.ETotal),
		"drift", fmt.Sprintf("%.3e", snap.Conservation.DriftE),
		"|L|", fmt.Sprintf("%.4g", norm3(snap.Conservation.L)),
		"virial", virialText(snap.Virial),
	)

	if len(snap.Anomalies) > 0 {
		msg := "anomaly:"
		for _, a := range snap.Anomalies {
			msg += fmt.Sprintf(" %s=%g", a.Name, a.Value)
		}
		m.text(0, 7, styleAnomaly, msg)
	}
}

func emergenceText(e diagnostics.Emergence) string {
	if e.Emergent {
		return fmt.Sprintf("%.3f L%d emergent", e.Phi, e.Hierarchy.Levels)
	}
	return fmt.Sprintf("%.3f L%d", e.Phi, e.Hierarchy.Levels)
}

func virialText(v diagnostics.Virial) string {
	if v.OK {
		return fmt.Sprintf("%.3f ok", v.Ratio)
	}
	return fmt.Sprintf("%.3f", v.Ratio)
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// drawScatter plots projected points autoscaled into the area under the header
// Previous positions fade out as trails
func (m *Monitor) drawScatter(points [][2]float64) {
	top, bottom := headerRows, m.height-1
	left, right := 0, m.width-1
	if bottom-top < 3 || right-left < 3 {
		return
	}
	m.box(left, top, right, bottom)

	m.updateTrails()
	for _, t := range m.trails {
		level := int32(min(255, int(t.intensity*255)))
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(level, level, level))
		m.screen.SetContent(t.x, t.y, '·', nil, style)
	}

	if len(points) == 0 {
		m.last = nil
		return
	}

	minX, maxX, minY, maxY := bounds(points)
	innerW := float64(right - left - 2)
	innerH := float64(bottom - top - 2)

	cur := make([]cell, len(points))
	for i, p := range points {
		x := left + 1 + int(math.Round(scale(p[0], minX, maxX)*innerW))
		y := bottom - 1 - int(math.Round(scale(p[1], minY, maxY)*innerH))
		cur[i] = cell{x, y}
		style := tcell.StyleDefault.Foreground(pointColors[i%len(pointColors)])
		m.screen.SetContent(x, y, '●', nil, style)
	}
	m.last = cur
}

// updateTrails decays old trails and turns last frame's points into new ones
func (m *Monitor) updateTrails() {
	kept := m.trails[:0]
	for _, t := range m.trails {
		t.intensity *= trailDecay
		if t.intensity > trailMinimum {
			kept = append(kept, t)
		}
	}
	for _, c := range m.last {
		kept = append(kept, trail{x: c.x, y: c.y, intensity: 1})
	}
	m.trails = kept
}

func bounds(points [][2]float64) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	return
}

// scale maps v from [lo, hi] to [0, 1]; a degenerate range centers
func scale(v, lo, hi float64) float64 {
	if hi-lo <= 0 || math.IsNaN(v) {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

func (m *Monitor) box(x0, y0, x1, y1 int) {
	for x := x0 + 1; x < x1; x++ {
		m.screen.SetContent(x, y0, tcell.RuneHLine, nil, styleBorder)
		m.screen.SetContent(x, y1, tcell.RuneHLine, nil, styleBorder)
	}
	for y := y0 + 1; y < y1; y++ {
		m.screen.SetContent(x0, y, tcell.RuneVLine, nil, styleBorder)
		m.screen.SetContent(x1, y, tcell.RuneVLine, nil, styleBorder)
	}
	m.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, styleBorder)
	m.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, styleBorder)
	m.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, styleBorder)
	m.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, styleBorder)
	m.text(x0+2, y0, styleTitle, " projection ")
}

// pairs lays label/value pairs across a row in equal columns
func (m *Monitor) pairs(row int, kv ...string) {
	n := len(kv) / 2
	if n == 0 {
		return
	}
	colW := m.width / n
	for i := 0; i < n; i++ {
		m.pairAt(i*colW, row, kv[2*i], kv[2*i+1])
	}
}

func (m *Monitor) pairAt(x, y int, label, value string) {
	x = m.text(x, y, styleLabel, label+" ")
	m.text(x, y, styleValue, value)
}

// text writes s clipped to the screen and returns the next column
func (m *Monitor) text(x, y int, style tcell.Style, s string) int {
	if y < 0 || y >= m.height {
		return x
	}
	for _, r := range s {
		if x >= m.width {
			break
		}
		m.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
