package lexicon

import (
	"encoding/json"
	"fmt"
)

// TypeProfile is the $type of the actor profile record fetched as the
// second-tier display-name fallback.
const TypeProfile = "app.bsky.actor.profile"

// Profile is the subset of an actor profile record this service reads.
type Profile struct {
	Type        string `json:"$type"`
	DisplayName string `json:"displayName"`
}

// ParseProfile decodes and shape-checks a profile record payload.
func ParseProfile(raw json.RawMessage) (*Profile, error) {
	var rec Profile
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding profile record: %w", err)
	}
	if rec.Type != TypeProfile && rec.Type != TypeProfile+"#main" {
		return nil, fmt.Errorf("unexpected $type %q", rec.Type)
	}
	return &rec, nil
}
