// Package rawexport writes the intermediate extraction output.
package rawexport

import (
	"encoding/json"
	"fmt"
	"io"

	"icpscout/internal/domain"
	"icpscout/internal/extract"
)

// Document is the raw_companies.json layout.
type Document struct {
	Companies []domain.CandidateRecord `json:"companies"`
	Stats     extract.Stats            `json:"stats"`
}

// Write encodes records and stats as indented JSON.
func Write(w io.Writer, recs []domain.CandidateRecord, stats extract.Stats) error {
	if recs == nil {
		recs = []domain.CandidateRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Companies: recs, Stats: stats}); err != nil {
		return fmt.Errorf("encoding raw companies: %w", err)
	}
	return nil
}

// Read decodes a document written by Write.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding raw companies: %w", err)
	}
	return &doc, nil
}
