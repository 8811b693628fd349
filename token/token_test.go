package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/synapse/frame"
	"github.com/lixenwraith/synapse/particle"
	"github.com/lixenwraith/synapse/vmath"
)

func TestRollingRate(t *testing.T) {
	s := NewStream(2 * time.Second)
	for i := 0; i < 10; i++ {
		s.Add(NewPhiHarmonic(i, float64(i)*0.1, 440, 0.5, 0))
	}

	got := s.UpdateRate(1.0)
	want := 10 / 0.9
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Rate at t=1.0: got %v, want %v", got, want)
	}
	if s.Rate() != got {
		t.Errorf("Rate() should return last computed value")
	}

	if got := s.UpdateRate(3.0); got != 0 {
		t.Errorf("Rate at t=3.0: got %v, want 0", got)
	}
	if s.Len() != 10 {
		t.Errorf("Rate eviction must not drop tokens, got %d", s.Len())
	}
}

func TestRateSingleInstant(t *testing.T) {
	s := NewStream(0)
	if s.Window() != DefaultWindow {
		t.Errorf("Expected default window, got %v", s.Window())
	}
	for i := 0; i < 3; i++ {
		s.AddAt(NewPhiHarmonic(i, 5, 440, 0.5, i), 5)
	}
	if got := s.UpdateRate(5); got != 3 {
		t.Errorf("Coincident stamps should report count, got %v", got)
	}
	if got := NewStream(time.Second).UpdateRate(10); got != 0 {
		t.Errorf("Empty stream rate should be 0, got %v", got)
	}
}

func TestSinceAndClear(t *testing.T) {
	s := NewStream(DefaultWindow)
	for i := 0; i < 4; i++ {
		s.Add(NewPhiHarmonic(i, float64(i), 440, 0.5, 0))
	}
	if got := s.Since(2); len(got) != 2 || got[0].ID != "harmonic_2_0" {
		t.Errorf("Since(2) returned %v", got)
	}
	if s.Since(4) != nil {
		t.Error("Since past end should be nil")
	}

	s.Clear()
	if s.Len() != 0 || s.Rate() != 0 || s.UpdateRate(3) != 0 {
		t.Error("Clear should reset tokens and rate")
	}
}

func TestAudioFrameSummaryTruncates(t *testing.T) {
	f := &frame.AudioFrame{Timestamp: 2}
	for i := 0; i < 8; i++ {
		f.FrequencyData = append(f.FrequencyData, frame.FrequencyBin{Frequency: float64(100 * (i + 1)), Magnitude: 0.5})
		f.Harmonics = append(f.Harmonics, float64(i))
	}

	tok := NewAudioFrame(0, f, 12345)
	p := tok.Payload.(*AudioFramePayload)
	if p.FrequencyCount != 8 || len(p.TopFrequencies) != 5 || len(p.PhiHarmonics) != 5 {
		t.Errorf("Unexpected summary sizes: count=%d top=%d harmonics=%d",
			p.FrequencyCount, len(p.TopFrequencies), len(p.PhiHarmonics))
	}

	f.FrequencyData[0].Magnitude = 0
	if p.TopFrequencies[0].Magnitude != 0.5 {
		t.Error("Summary must not alias frame data")
	}
}

func TestTokenJSONIsFlat(t *testing.T) {
	p := particle.New("p-1", vmath.Vec3F{X: 1, Y: 2, Z: 3}, 440, 1)
	tok := NewParticleEvent(7, 0.5, EventAudioCreation, p)

	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Not a JSON object: %v", err)
	}
	for _, key := range []string{"id", "type", "timestamp", "event", "particleId", "position", "Ec", "vi", "entropyS"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("Missing key %q in %s", key, data)
		}
	}
	if _, ok := flat["parentId"]; ok {
		t.Error("Empty parent should be omitted")
	}
}

func TestTokenDecodeByType(t *testing.T) {
	tokens := []Token{
		NewAudioFrame(0, &frame.AudioFrame{Timestamp: 1, RMSEnergy: 0.2}, 99),
		NewPhiHarmonic(1, 1, 712, 0.4, 2),
		NewFrequencyUpdate(2, 1, "p-2", frame.FrequencyBin{Frequency: 220, Magnitude: 0.9}),
	}
	for _, want := range tokens {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var got Token
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", want.Type, err)
		}
		if got.Payload.TokenType() != want.Type {
			t.Errorf("Decoded payload type %s, want %s", got.Payload.TokenType(), want.Type)
		}
		again, _ := json.Marshal(got)
		if !bytes.Equal(again, data) {
			t.Errorf("Re-encoding differs:\n%s\n%s", data, again)
		}
	}

	var bad Token
	err := json.Unmarshal([]byte(`{"id":"x","type":"bogus","timestamp":0}`), &bad)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestHarmonicPhiRatio(t *testing.T) {
	tok := NewPhiHarmonic(0, 0, 440, 1, 2)
	if r := tok.Payload.(*HarmonicPayload).PhiRatio; math.Abs(r-1.618033988749895) > 1e-12 {
		t.Errorf("φ^(2/2) expected, got %v", r)
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := NewStream(DefaultWindow)
	s.Add(NewAudioFrame(0, &frame.AudioFrame{Timestamp: 0.1}, 1))
	s.Add(NewPhiHarmonic(1, 0.1, 440, 1, 0))

	meta := Metadata{TotalTokens: s.Len(), Engine: "synapse", Mode: "live", Seed: 1}
	var buf bytes.Buffer
	if err := s.Export(&buf, meta); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"metadata"`) {
		t.Errorf("Export missing metadata: %s", buf.String())
	}

	doc, err := ReadExport(&buf)
	if err != nil {
		t.Fatalf("ReadExport failed: %v", err)
	}
	if doc.Metadata.TotalTokens != 2 || len(doc.Tokens) != 2 {
		t.Errorf("Unexpected document: %+v", doc.Metadata)
	}
	if doc.Tokens[1].Type != TypePhiHarmonic {
		t.Errorf("Token order not preserved")
	}
}

func TestExportEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	if err := NewStream(DefaultWindow).Export(&buf, Metadata{}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"tokens": []`) {
		t.Errorf("Empty export should carry an empty array: %s", buf.String())
	}
}
