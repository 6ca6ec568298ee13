// Package lexicon holds the wire shapes of the records this service watches,
// along with shape validation. Payloads arrive from an untrusted network, so
// validation failure is the expected path for garbage input, not an
// exceptional one.
package lexicon

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// TypeStatus is the $type value carried by status records on the wire.
const TypeStatus = "xyz.statusphere.status"

// maxStatusLen bounds the status glyph, in bytes, per the lexicon's
// maxLength. A single emoji grapheme fits well under this.
const maxStatusLen = 32

// Status is the wire form of a xyz.statusphere.status record.
type Status struct {
	Type      string `json:"$type"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// ParseStatus decodes and shape-checks a status payload.
func ParseStatus(raw json.RawMessage) (*Status, error) {
	var rec Status
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding status record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Validate checks the decoded record against the lexicon's constraints.
func (s *Status) Validate() error {
	if s.Type != TypeStatus && s.Type != TypeStatus+"#main" {
		return fmt.Errorf("unexpected $type %q", s.Type)
	}
	if s.Status == "" {
		return fmt.Errorf("status is required")
	}
	if len(s.Status) > maxStatusLen {
		return fmt.Errorf("status exceeds %d bytes", maxStatusLen)
	}
	if !utf8.ValidString(s.Status) {
		return fmt.Errorf("status is not valid UTF-8")
	}
	if s.CreatedAt == "" {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}
