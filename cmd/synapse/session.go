package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/synapse/config"
	"github.com/lixenwraith/synapse/core"
	"github.com/lixenwraith/synapse/engine"
	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/monitor"
	"github.com/lixenwraith/synapse/network"
	"github.com/lixenwraith/synapse/status"
)

// addSimFlags registers the flags shared by run and replay
// Defaults shown are informational; unset flags fall through to config and env
func addSimFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.Uint64("seed", d.Sim.Seed, "RNG seed")
	fs.Bool("gravity", d.Sim.Physics.GravEnabled, "enable pairwise gravity")
	fs.Bool("dark-matter", d.Sim.Physics.DMEnabled, "enable NFW dark matter potential")
	fs.Float64("blend-lorenz", d.Sim.Physics.BlendLorenz, "chaotic/gravity blend in [0,1]")
	fs.Bool("refresh-neighbors", d.Sim.Physics.RefreshNeighbors, "recompute neighbor lists every tick when gravity is off")
	fs.Float64("sensitivity", d.Sim.Audio.Sensitivity, "audio modulation sensitivity")
	fs.Float64("dt", d.Sim.Timestep.DT, "initial integration step")
	fs.Bool("adaptive-dt", d.Sim.Timestep.Adaptive, "adapt dt to the closest neighbor distance and the fastest speed")
	fs.Duration("window", d.Sim.Stream.Window, "token rate window")
	fs.String("feed", d.FeedRole, "token feed role: none or server")
	fs.String("feed-addr", d.Feed.Address, "token feed listen address")
	fs.Int("max-peers", d.Feed.MaxPeers, "maximum feed watchers")
	fs.Duration("tick", d.Run.TickInterval, "tick interval, 0 free-runs")
	fs.Duration("snapshot", d.Run.SnapshotInterval, "diagnostics snapshot interval")
	fs.String("export", "", "write the token stream to this JSON file on exit")
	fs.Bool("monitor", false, "show the terminal monitor")
}

// loadSettings resolves settings for cmd from its flags, config file and env
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path, cmd.Flags())
}

// session wires a simulator to its scheduler, feed and monitor
type session struct {
	settings *config.Settings
	log      *logrus.Logger
	closer   io.Closer

	reg   *status.Registry
	sim   *engine.Simulator
	sched *engine.ClockScheduler
	feed  *network.Service
}

func newSession(cmd *cobra.Command) (*session, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	log, closer, err := setupLogging(s.Run.LogLevel, s.Run.LogFile, s.Run.Monitor)
	if err != nil {
		return nil, err
	}
	core.SetCrashLogger(log)

	sim, err := engine.NewSimulator(&s.Sim, log)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}

	ss := &session{
		settings: s,
		log:      log,
		closer:   closer,
		reg:      status.NewRegistry(),
		sim:      sim,
	}
	sim.AttachStatus(ss.reg)
	ss.sched = engine.NewClockScheduler(sim, nil, s.Run.TickInterval, s.Run.SnapshotInterval, log)

	if s.Feed.Role != network.RoleNone {
		if s.Feed.Role != network.RoleServer {
			closeQuietly(closer)
			return nil, fmt.Errorf("feed role %s not valid for a simulation, use server", s.Feed.Role)
		}
		feed, err := network.NewService(&s.Feed, log)
		if err != nil {
			closeQuietly(closer)
			return nil, err
		}
		feed.AttachStatus(ss.reg)
		ss.feed = feed
		ss.sched.AddSink(feed)
	}
	return ss, nil
}

func (ss *session) close() {
	closeQuietly(ss.closer)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}

// run drives the simulation until ctx ends, the scheduler stops or the monitor quits
// producer, if set, feeds frames and may finish early without ending the run
func (ss *session) run(ctx context.Context, producer func(ctx context.Context) error) error {
	if d := ss.settings.Run.Duration; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ss.feed != nil {
		ss.feed.SetHello(network.Hello{
			Engine:  engine.EngineName,
			Version: engine.Version,
			Mode:    ss.sim.Mode().String(),
			Seed:    ss.sim.Seed(),
		})
		if err := ss.feed.Start(); err != nil {
			return err
		}
		defer ss.feed.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Scheduler exit ends the whole run
		defer cancel()
		return ss.sched.Run(gctx)
	})

	if producer != nil {
		g.Go(func() error { return producer(gctx) })
	}

	if ss.settings.Run.Monitor {
		screen, err := monitor.NewScreen()
		if err != nil {
			cancel()
			g.Wait()
			return err
		}
		defer screen.Fini()
		mon := monitor.New(screen, ss.reg, 0)
		g.Go(func() error { return mon.Run(gctx) })
	}

	start := time.Now()
	err := g.Wait()
	if errors.Is(err, monitor.ErrQuit) || errors.Is(err, context.Canceled) {
		err = nil
	}

	ss.log.WithFields(logrus.Fields{
		"ticks":     ss.sim.Ticks(),
		"particles": ss.sim.ParticleCount(),
		"tokens":    len(ss.sim.Tokens()),
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("run finished")
	return err
}

// exportTokens writes the token stream when an export path is configured
func (ss *session) exportTokens() error {
	path := ss.settings.Run.Export
	if path == "" {
		return nil
	}
	if err := ss.sim.ExportTokensFile(path, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("export tokens: %w", err)
	}
	ss.log.WithField("path", path).Info("tokens exported")
	return nil
}

// countingSink forwards frames to the queue and counts them in the registry
type countingSink struct {
	queue  *frame.Queue
	pushed *atomic.Int64
}

func (c *countingSink) Push(f *frame.AudioFrame) {
	c.queue.Push(f)
	c.pushed.Add(1)
}
