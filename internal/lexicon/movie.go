package lexicon

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TypeMovie is the $type value carried by movie records on the wire.
const TypeMovie = "xyz.statusphere.movie"

const maxReviewLen = 3000

// Movie is the wire form of a xyz.statusphere.movie record. Rate arrives as
// a decimal-in-string enum ("0.5" through "5" in half steps); the booleans
// are coerced to false when absent.
type Movie struct {
	Type          string `json:"$type"`
	Name          string `json:"name"`
	Rate          string `json:"rate"`
	WatchedBefore bool   `json:"watchedBefore"`
	Liked         bool   `json:"liked"`
	Review        string `json:"review"`
	CreatedAt     string `json:"createdAt"`
}

// ParseMovie decodes and shape-checks a movie payload.
func ParseMovie(raw json.RawMessage) (*Movie, error) {
	var rec Movie
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding movie record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Validate checks the decoded record against the lexicon's constraints.
func (m *Movie) Validate() error {
	if m.Type != TypeMovie && m.Type != TypeMovie+"#main" {
		return fmt.Errorf("unexpected $type %q", m.Type)
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := ParseRate(m.Rate); err != nil {
		return err
	}
	if len(m.Review) > maxReviewLen {
		return fmt.Errorf("review exceeds %d bytes", maxReviewLen)
	}
	if m.CreatedAt == "" {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// ParseRate converts the wire rate string to its numeric value, enforcing
// the enum: 0.5 through 5 inclusive, in steps of 0.5.
func ParseRate(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("rate %q is not a number", s)
	}
	if v < 0.5 || v > 5 {
		return 0, fmt.Errorf("rate %v out of range", v)
	}
	half := v * 2
	if half != float64(int(half)) {
		return 0, fmt.Errorf("rate %v is not a half step", v)
	}
	return v, nil
}
