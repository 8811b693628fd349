// Package recorder captures ingested audio frames for deterministic replay
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lixenwraith/synapse/frame"
)

// ErrMalformedFrame wraps decode failures of recorded frames
var ErrMalformedFrame = errors.New("malformed recorded frame")

// Recorder holds deep copies of frames plus a replay cursor
// Not safe for concurrent use; owned by the simulator
type Recorder struct {
	frames    []*frame.AudioFrame
	recording bool
	cursor    int
}

func New() *Recorder {
	return &Recorder{}
}

// Start clears any previous capture and begins recording
func (r *Recorder) Start() {
	r.frames = nil
	r.cursor = 0
	r.recording = true
}

// Stop ends recording, keeping captured frames
func (r *Recorder) Stop() {
	r.recording = false
}

// Recording reports whether Add currently captures
func (r *Recorder) Recording() bool {
	return r.recording
}

// Add stores a deep copy of f while recording; no-op otherwise
func (r *Recorder) Add(f *frame.AudioFrame) {
	if !r.recording || f == nil {
		return
	}
	r.frames = append(r.frames, f.Clone())
}

// Len returns the captured frame count
func (r *Recorder) Len() int {
	return len(r.frames)
}

// Frames returns deep copies of the captured frames
func (r *Recorder) Frames() []*frame.AudioFrame {
	out := make([]*frame.AudioFrame, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Clone()
	}
	return out
}

// Next returns a copy of the frame at the cursor and advances it
// At the end the cursor rewinds to 0 and ok is false
func (r *Recorder) Next() (*frame.AudioFrame, bool) {
	if r.cursor >= len(r.frames) {
		r.cursor = 0
		return nil, false
	}
	f := r.frames[r.cursor].Clone()
	r.cursor++
	return f, true
}

// Cursor returns the index of the next frame to replay
func (r *Recorder) Cursor() int {
	return r.cursor
}

// Remaining returns how many frames Next will yield before rewinding
func (r *Recorder) Remaining() int {
	return len(r.frames) - r.cursor
}

// ResetReplay rewinds the cursor
func (r *Recorder) ResetReplay() {
	r.cursor = 0
}

// Save writes the capture as an indented JSON array
func (r *Recorder) Save(w io.Writer) error {
	frames := r.frames
	if frames == nil {
		frames = []*frame.AudioFrame{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(frames); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

// Load replaces the capture with frames decoded from rd and rewinds the cursor
// Any frame missing a required field fails the whole load; existing frames are kept on error
func (r *Recorder) Load(rd io.Reader) error {
	var raw []json.RawMessage
	if err := json.NewDecoder(rd).Decode(&raw); err != nil {
		return fmt.Errorf("load recording: %w", err)
	}

	frames := make([]*frame.AudioFrame, 0, len(raw))
	for i, msg := range raw {
		var f frame.AudioFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			return fmt.Errorf("%w: frame %d: %w", ErrMalformedFrame, i, err)
		}
		frames = append(frames, &f)
	}

	r.frames = frames
	r.cursor = 0
	return nil
}

// SaveFile writes the capture to path
func (r *Recorder) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	if err := r.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile loads a capture from path
func (r *Recorder) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	defer f.Close()
	return r.Load(f)
}
