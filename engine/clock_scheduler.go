package engine

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/token"
)

// ErrSchedulerRunning is returned by Run when the loop is already active
var ErrSchedulerRunning = errors.New("scheduler already running")

// Sink receives simulation output; called on the scheduler goroutine and must not block
type Sink interface {
	PublishTokens(tokens []token.Token)
	PublishSnapshot(snap *diagnostics.Snapshot)
}

// ClockScheduler drives Simulator.Tick on a fixed interval with drift correction
// It is the only goroutine touching the simulator while running
type ClockScheduler struct {
	sim   *Simulator
	clock Clock
	log   *logrus.Logger
	sinks []Sink

	// Tick configuration, non-positive tickInterval free-runs
	tickInterval     time.Duration
	snapshotInterval time.Duration
	nextTickDeadline time.Time
	lastSnapshot     time.Time

	tickCount atomic.Uint64
	running   atomic.Bool
}

// NewClockScheduler creates a scheduler for sim
func NewClockScheduler(sim *Simulator, clock Clock, tickInterval, snapshotInterval time.Duration, log *logrus.Logger) *ClockScheduler {
	if clock == nil {
		clock = NewTimeProvider()
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &ClockScheduler{
		sim:              sim,
		clock:            clock,
		log:              log,
		tickInterval:     tickInterval,
		snapshotInterval: snapshotInterval,
	}
}

// AddSink registers an output consumer, must be called before Run
func (cs *ClockScheduler) AddSink(s Sink) {
	cs.sinks = append(cs.sinks, s)
}

// TickCount returns ticks executed by this scheduler
func (cs *ClockScheduler) TickCount() uint64 {
	return cs.tickCount.Load()
}

// Running reports whether Run is active
func (cs *ClockScheduler) Running() bool {
	return cs.running.Load()
}

// Run ticks until ctx is cancelled or, in replay mode, the recording is exhausted
// A final snapshot is published on exit
func (cs *ClockScheduler) Run(ctx context.Context) error {
	if !cs.running.CompareAndSwap(false, true) {
		return ErrSchedulerRunning
	}
	defer cs.running.Store(false)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	start := cs.clock.Now()
	cs.nextTickDeadline = start.Add(cs.tickInterval)
	cs.lastSnapshot = start

	cs.log.WithFields(logrus.Fields{
		"mode":     cs.sim.Mode().String(),
		"interval": cs.tickInterval,
	}).Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			cs.publishSnapshot(cs.clock.Now())
			cs.log.WithField("ticks", cs.tickCount.Load()).Info("scheduler stopped")
			return nil
		default:
		}

		now := cs.clock.Now()
		if cs.tickInterval <= 0 || !now.Before(cs.nextTickDeadline) {
			cs.processTick(now)

			if cs.sim.ReplayDone() {
				cs.publishSnapshot(cs.clock.Now())
				cs.log.WithField("ticks", cs.tickCount.Load()).Info("replay complete")
				return nil
			}

			cs.nextTickDeadline = cs.nextTickDeadline.Add(cs.tickInterval)
			// Skip missed ticks rather than bursting to catch up
			if now.Sub(cs.nextTickDeadline) > cs.tickInterval*2 {
				cs.nextTickDeadline = now.Add(cs.tickInterval)
			}
		}

		if cs.tickInterval <= 0 {
			continue
		}

		sleep := cs.nextTickDeadline.Sub(cs.clock.Now())
		if sleep <= 0 {
			continue
		}
		timer.Reset(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// processTick runs one simulation step and fans out its output
func (cs *ClockScheduler) processTick(now time.Time) {
	cs.sim.Tick()
	cs.tickCount.Add(1)

	if tokens := cs.sim.DrainTokens(); len(tokens) > 0 {
		for _, s := range cs.sinks {
			s.PublishTokens(tokens)
		}
	}

	if now.Sub(cs.lastSnapshot) >= cs.snapshotInterval {
		cs.publishSnapshot(now)
	}
}

func (cs *ClockScheduler) publishSnapshot(now time.Time) {
	cs.lastSnapshot = now
	snap := cs.sim.PublishSnapshot()
	for _, s := range cs.sinks {
		s.PublishSnapshot(snap)
	}
	if len(snap.Anomalies) > 0 {
		cs.log.WithFields(logrus.Fields{
			"tick":      snap.Tick,
			"anomalies": snap.Anomalies,
		}).Warn("psi anomaly")
	}
}
