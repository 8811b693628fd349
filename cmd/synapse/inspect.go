package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lixenwraith/synapse/recorder"
	"github.com/lixenwraith/synapse/token"
)

// ErrUnknownFile is returned when a file is neither a recording nor a token export
var ErrUnknownFile = errors.New("not a recording or token export")

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.json>",
		Short: "Summarize a frame recording or a token export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), data)
		},
	}
}

// inspect detects the file kind from its top-level JSON shape
// Recordings are arrays of frames; exports are objects with metadata and tokens
func inspect(w io.Writer, data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ErrUnknownFile
	}
	switch trimmed[0] {
	case '[':
		return inspectRecording(w, data)
	case '{':
		return inspectExport(w, data)
	}
	return ErrUnknownFile
}

func inspectRecording(w io.Writer, data []byte) error {
	rec := recorder.New()
	if err := rec.Load(bytes.NewReader(data)); err != nil {
		return err
	}
	frames := rec.Frames()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "kind\trecording\n")
	fmt.Fprintf(tw, "frames\t%d\n", len(frames))
	if len(frames) > 0 {
		first, last := frames[0], frames[len(frames)-1]
		var rmsSum, bins float64
		silent := 0
		for _, f := range frames {
			rmsSum += f.RMSEnergy
			bins += float64(len(f.FrequencyData))
			if len(f.FrequencyData) == 0 {
				silent++
			}
		}
		fmt.Fprintf(tw, "span\t%.3fs .. %.3fs\n", first.Timestamp, last.Timestamp)
		fmt.Fprintf(tw, "mean rms\t%.4f\n", rmsSum/float64(len(frames)))
		fmt.Fprintf(tw, "mean bins\t%.2f\n", bins/float64(len(frames)))
		fmt.Fprintf(tw, "empty frames\t%d\n", silent)
		if len(first.FrequencyData) > 0 {
			fmt.Fprintf(tw, "first peak\t%.2f Hz\n", first.FrequencyData[0].Frequency)
		}
	}
	return tw.Flush()
}

func inspectExport(w io.Writer, data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["metadata"]; !ok {
		return ErrUnknownFile
	}

	doc, err := token.ReadExport(bytes.NewReader(data))
	if err != nil {
		return err
	}
	m := doc.Metadata

	counts := make(map[token.Type]int)
	for _, t := range doc.Tokens {
		counts[t.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	slices.Sort(types)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "kind\ttoken export\n")
	fmt.Fprintf(tw, "engine\t%s %s\n", m.Engine, m.Version)
	fmt.Fprintf(tw, "exported\t%s\n", m.ExportDate)
	fmt.Fprintf(tw, "mode\t%s\n", m.Mode)
	fmt.Fprintf(tw, "seed\t%d\n", m.Seed)
	fmt.Fprintf(tw, "particles\t%d\n", m.ParticleCount)
	fmt.Fprintf(tw, "tokens\t%d (metadata %d)\n", len(doc.Tokens), m.TotalTokens)
	fmt.Fprintf(tw, "rate\t%.2f/s\n", m.TokenGenerationRate)
	fmt.Fprintf(tw, "physics\tblend=%.2f gravity=%t dm=%t\n", m.Physics.BlendLorenz, m.Physics.GravEnabled, m.Physics.DMEnabled)
	for _, t := range types {
		fmt.Fprintf(tw, "  %s\t%d\n", t, counts[token.Type(t)])
	}
	return tw.Flush()
}
