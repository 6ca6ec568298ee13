package identity

import (
	"sync"
	"time"

	"skymirror/internal/mirror"
)

// Default retention for DID document lookups. Failed resolutions are held
// much longer than successful ones so the identity network is not hammered
// for DIDs known to be currently unresolvable.
const (
	DefaultPositiveTTL = time.Hour
	DefaultNegativeTTL = 24 * time.Hour
)

type cacheEntry struct {
	doc       *DIDDocument
	err       error
	expiresAt time.Time
}

// DIDCache is a process-wide positive/negative cache for DID document
// resolution. Construct one at startup and share it; it is safe for
// concurrent use. Expired entries are evicted lazily on lookup.
type DIDCache struct {
	mu          sync.Mutex
	entries     map[string]cacheEntry
	positiveTTL time.Duration
	negativeTTL time.Duration
	clock       mirror.Clock
}

// NewDIDCache creates a cache with the given TTLs. Zero TTLs fall back to
// the defaults.
func NewDIDCache(positiveTTL, negativeTTL time.Duration, clock mirror.Clock) *DIDCache {
	if positiveTTL <= 0 {
		positiveTTL = DefaultPositiveTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultNegativeTTL
	}
	return &DIDCache{
		entries:     make(map[string]cacheEntry),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		clock:       clock,
	}
}

// Get returns the cached document or failure for did. ok is false when there
// is no live entry.
func (c *DIDCache) Get(did string) (doc *DIDDocument, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[did]
	if !found {
		return nil, false, nil
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, did)
		return nil, false, nil
	}
	return e.doc, true, e.err
}

// PutSuccess caches a successful resolution for the positive TTL.
func (c *DIDCache) PutSuccess(did string, doc *DIDDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[did] = cacheEntry{doc: doc, expiresAt: c.clock.Now().Add(c.positiveTTL)}
}

// PutFailure caches a failed resolution for the negative TTL.
func (c *DIDCache) PutFailure(did string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[did] = cacheEntry{err: err, expiresAt: c.clock.Now().Add(c.negativeTTL)}
}

// Len reports the number of entries currently held, live or expired.
func (c *DIDCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
