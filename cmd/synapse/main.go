package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "synapse",
		Short:         "Audio-driven particle simulation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (toml, yaml or json)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newRunCmd(),
		newReplayCmd(),
		newInspectCmd(),
		newWatchCmd(),
	)
	return root
}
