package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Load reads and validates a campaign definition from a JSON file.
//
// Decoding is strict: unknown fields and trailing data are errors, so a
// typo'd key fails at startup instead of silently dropping a stage.
func Load(path string) (*Campaign, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("campaign: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a campaign definition from JSON bytes.
func Parse(b []byte) (*Campaign, error) {
	var c Campaign
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("campaign: decode: %w", err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("campaign: trailing data after document")
		}
		return nil, fmt.Errorf("campaign: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
