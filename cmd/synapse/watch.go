package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/network"
	"github.com/lixenwraith/synapse/token"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to a running token feed and print messages as JSON lines",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	fs := cmd.Flags()
	fs.String("addr", "127.0.0.1:7777", "feed address")
	fs.Bool("tokens", true, "print tokens")
	fs.Bool("snapshots", true, "print diagnostics snapshots")
	return cmd
}

// lineWriter serializes feed callbacks onto one output stream
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (lw *lineWriter) write(kind string, v any) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.enc.Encode(map[string]any{"kind": kind, "data": v})
}

func runWatch(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logFile, _ := cmd.Flags().GetString("log-file")
	log, closer, err := setupLogging(level, logFile, false)
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	addr, _ := cmd.Flags().GetString("addr")
	showTokens, _ := cmd.Flags().GetBool("tokens")
	showSnaps, _ := cmd.Flags().GetBool("snapshots")

	svc, err := network.NewService(network.DebugConfig(network.RoleClient, addr), log)
	if err != nil {
		return err
	}

	out := &lineWriter{enc: json.NewEncoder(cmd.OutOrStdout())}
	svc.SetHandlers(
		func(h network.Hello) { out.write("hello", h) },
		func(t token.Token) {
			if showTokens {
				out.write("token", t)
			}
		},
		func(s *diagnostics.Snapshot) {
			if showSnaps {
				out.write("snapshot", s)
			}
		},
	)

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", addr, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "received %d messages, missed %d\n", svc.Received(), svc.Missed())
	return nil
}
