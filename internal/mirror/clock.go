package mirror

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so ingestion and sweeping are deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// KeyGenerator abstracts record-key generation for optimistic local writes
// so tests are deterministic.
type KeyGenerator interface {
	New() string
}

// UUIDKeyGenerator produces random UUID record keys.
type UUIDKeyGenerator struct{}

func (UUIDKeyGenerator) New() string { return uuid.New().String() }
