package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/synapse/audio"
	"github.com/lixenwraith/synapse/status"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a live simulation driven by a WAV file or synthetic tones",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	fs := cmd.Flags()
	addSimFlags(fs)
	fs.String("input", "", "WAV file to analyze; synthetic 440+880 Hz tones when empty")
	fs.Int("frames", 0, "stop producing after this many frames, 0 = unbounded")
	fs.Bool("keep-samples", false, "attach normalized samples to each frame")
	fs.Bool("realtime", true, "pace audio chunks at playback speed")
	fs.Duration("duration", 0, "stop after this long, 0 = until interrupted")
	fs.String("record", "", "save ingested frames to this file for replay")
	return cmd
}

func runLive(cmd *cobra.Command, _ []string) error {
	ss, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer ss.close()

	cfg := &ss.settings.Audio
	src, err := audio.OpenSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	sink := &countingSink{queue: ss.sim.Queue(), pushed: ss.reg.Ints.Get(status.KeyFramesPushed)}
	capture := audio.NewCapture(src, sink, cfg, ss.log)

	if ss.settings.Run.Record != "" {
		ss.sim.StartRecording()
	}
	ss.sim.StartLive()

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := ss.run(ctx, capture.Run)

	if path := ss.settings.Run.Record; path != "" {
		ss.sim.StopRecording()
		if err := ss.sim.SaveRecordingFile(path); err != nil {
			return fmt.Errorf("save recording: %w", err)
		}
		ss.log.WithField("path", path).WithField("frames", len(ss.sim.RecordedFrames())).Info("recording saved")
	}
	if err := ss.exportTokens(); err != nil {
		return err
	}
	return runErr
}

// contextOrBackground guards commands executed without a context
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
