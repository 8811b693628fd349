package audio

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/synapse/frame"
)

// Sink receives analyzed frames; frame.Queue satisfies it
type Sink interface {
	Push(f *frame.AudioFrame)
}

// Capture pulls fixed-size chunks from a Source, analyzes them and pushes frames
// Timestamps are stream time (samples consumed / rate), so a given source
// always produces the same frame sequence
type Capture struct {
	src      *Source
	analyzer *Analyzer
	sink     Sink
	cfg      *Config
	log      *logrus.Logger

	buf      [][2]float64
	mono     []float64
	consumed int64

	chunks atomic.Int64
	pushed atomic.Int64
}

func NewCapture(src *Source, sink Sink, cfg *Config, log *logrus.Logger) *Capture {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Capture{
		src:      src,
		analyzer: NewAnalyzer(cfg),
		sink:     sink,
		cfg:      cfg,
		log:      log,
		buf:      make([][2]float64, cfg.ChunkSize),
		mono:     make([]float64, cfg.ChunkSize),
	}
}

// Chunks returns how many chunks have been pulled
func (c *Capture) Chunks() int64 { return c.chunks.Load() }

// Pushed returns how many frames reached the sink
func (c *Capture) Pushed() int64 { return c.pushed.Load() }

// Step pulls and analyzes one chunk
// more is false once the source is exhausted
func (c *Capture) Step() (f *frame.AudioFrame, more bool, err error) {
	n := 0
	ok := true
	for n < len(c.buf) && ok {
		var got int
		got, ok = c.src.Streamer.Stream(c.buf[n:])
		n += got
	}
	if n == 0 {
		if err := c.src.Streamer.Err(); err != nil {
			return nil, false, fmt.Errorf("audio stream: %w", err)
		}
		return nil, false, nil
	}

	// Downmix to mono
	for i := 0; i < n; i++ {
		c.mono[i] = (c.buf[i][0] + c.buf[i][1]) / 2
	}
	ts := float64(c.consumed) / float64(c.src.Rate)
	c.consumed += int64(n)
	c.chunks.Add(1)

	return c.analyzer.Analyze(c.mono[:n], ts), ok, nil
}

// Run produces frames until ctx is cancelled, the source ends or MaxFrames is reached
func (c *Capture) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.cfg.Realtime {
		ticker := time.NewTicker(c.src.Rate.D(c.cfg.ChunkSize))
		defer ticker.Stop()
		tick = ticker.C
	}

	c.log.WithFields(logrus.Fields{
		"rate":  int(c.src.Rate),
		"chunk": c.cfg.ChunkSize,
	}).Info("audio capture started")

	for {
		select {
		case <-ctx.Done():
			c.log.WithField("frames", c.Pushed()).Info("audio capture stopped")
			return nil
		default:
		}

		f, more, err := c.Step()
		if err != nil {
			return err
		}
		if f != nil {
			c.sink.Push(f)
			if n := c.pushed.Add(1); c.cfg.MaxFrames > 0 && n >= int64(c.cfg.MaxFrames) {
				c.log.WithField("frames", n).Info("audio capture reached frame limit")
				return nil
			}
		} else {
			c.log.WithField("chunk", c.Chunks()).Debug("chunk produced no frequency data")
		}
		if !more {
			c.log.WithField("frames", c.Pushed()).Info("audio source exhausted")
			return nil
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}
