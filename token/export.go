package token

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// PhysicsSummary is the physics configuration recorded with an export
type PhysicsSummary struct {
	BlendLorenz float64 `json:"blendLorenz"`
	GravEnabled bool    `json:"gravEnabled"`
	DMEnabled   bool    `json:"dmEnabled"`
}

// Metadata describes the run that produced an export
type Metadata struct {
	ExportDate          string         `json:"exportDate"`
	TotalTokens         int            `json:"totalTokens"`
	TokenGenerationRate float64        `json:"tokenGenerationRate"`
	Engine              string         `json:"engine"`
	Version             string         `json:"version"`
	Mode                string         `json:"mode"`
	Seed                uint64         `json:"seed"`
	ParticleCount       int            `json:"particleCount"`
	Physics             PhysicsSummary `json:"physics"`
}

// Document is the on-disk export: metadata followed by the token sequence
type Document struct {
	Metadata Metadata `json:"metadata"`
	Tokens   []Token  `json:"tokens"`
}

// Export writes the stream with meta as indented JSON
func (s *Stream) Export(w io.Writer, meta Metadata) error {
	doc := Document{Metadata: meta, Tokens: s.tokens}
	if doc.Tokens == nil {
		doc.Tokens = []Token{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export tokens: %w", err)
	}
	return nil
}

// ExportFile writes the stream to path, replacing any existing file
func (s *Stream) ExportFile(path string, meta Metadata) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export tokens: %w", err)
	}
	if err := s.Export(f, meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadExport decodes an export document
func ReadExport(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("read token export: %w", err)
	}
	return &doc, nil
}

// ReadExportFile decodes the export document at path
func ReadExportFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read token export: %w", err)
	}
	defer f.Close()
	return ReadExport(f)
}
