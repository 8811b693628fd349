package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <recording.json>",
		Short: "Replay a recorded frame capture deterministically",
		Long: "Replay resets the simulation, re-seeds it and feeds the recorded frames in order.\n" +
			"The same recording and seed always produce the same token stream.",
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}
	addSimFlags(cmd.Flags())
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	ss, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer ss.close()

	if err := ss.sim.LoadRecordingFile(args[0]); err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	ss.sim.StartReplay()

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := ss.run(ctx, nil)
	if !ss.sim.ReplayDone() {
		ss.log.Warn("replay interrupted before the recording was exhausted")
	}
	if err := ss.exportTokens(); err != nil {
		return err
	}
	return runErr
}
