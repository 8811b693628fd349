package token

import (
	"slices"
	"time"
)

// DefaultWindow bounds the emission timestamps kept for rate estimation
const DefaultWindow = 2 * time.Second

// Stream is the append-only token sequence with a rolling emission-rate estimate
// Not safe for concurrent use; the engine tick is the only writer
type Stream struct {
	tokens []Token
	stamps []float64 // Emission times in the window, append order
	window float64   // Seconds
	rate   float64
}

// NewStream creates a stream; non-positive window falls back to DefaultWindow
func NewStream(window time.Duration) *Stream {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Stream{window: window.Seconds()}
}

// Window returns the rate window
func (s *Stream) Window() time.Duration {
	return time.Duration(s.window * float64(time.Second))
}

// Add appends t, using its timestamp as the emission time
func (s *Stream) Add(t Token) {
	s.AddAt(t, t.Timestamp)
}

// AddAt appends t with an explicit emission time
func (s *Stream) AddAt(t Token, emitted float64) {
	s.tokens = append(s.tokens, t)
	s.stamps = append(s.stamps, emitted)
	s.evict(emitted)
}

// evict drops leading stamps older than now-window
func (s *Stream) evict(now float64) {
	cutoff := now - s.window
	i := 0
	for i < len(s.stamps) && s.stamps[i] < cutoff {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}

// UpdateRate recomputes tokens per second over the window ending at now
// No stamps left: 0. Otherwise count/(newest-oldest), or count when they coincide
func (s *Stream) UpdateRate(now float64) float64 {
	s.evict(now)
	n := len(s.stamps)
	if n == 0 {
		s.rate = 0
		return 0
	}
	span := s.stamps[n-1] - s.stamps[0]
	if span > 0 {
		s.rate = float64(n) / span
	} else {
		s.rate = float64(n)
	}
	return s.rate
}

// Rate returns the value computed by the last UpdateRate
func (s *Stream) Rate() float64 {
	return s.rate
}

// Len returns the number of tokens emitted since the last Clear
func (s *Stream) Len() int {
	return len(s.tokens)
}

// Tokens returns a copy of the sequence in emission order
func (s *Stream) Tokens() []Token {
	return slices.Clone(s.tokens)
}

// Since returns a copy of tokens from index n onward
func (s *Stream) Since(n int) []Token {
	if n < 0 {
		n = 0
	}
	if n >= len(s.tokens) {
		return nil
	}
	return slices.Clone(s.tokens[n:])
}

// Clear drops all tokens, stamps and the rate
func (s *Stream) Clear() {
	s.tokens = nil
	s.stamps = nil
	s.rate = 0
}
