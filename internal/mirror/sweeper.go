package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sweeper garbage-collects expired OAuth session rows. The session payload
// is an opaque blob owned by the auth component; a row whose expiry cannot
// be determined is never treated as expired.
type Sweeper struct {
	store  Store
	logger Logger
	clock  Clock
}

func NewSweeper(store Store, logger Logger, clock Clock) *Sweeper {
	return &Sweeper{store: store, logger: logger, clock: clock}
}

// Sweep deletes every session row whose embedded token-set expiry is in the
// past. It never returns an error: a failure to enumerate the table ends
// the sweep early, and a per-row parse failure leaves that row in place.
// Safe to call repeatedly and concurrently with writes to the session table;
// rows inserted mid-sweep are simply not visited this pass.
func (sw *Sweeper) Sweep(ctx context.Context) {
	sessions, err := sw.store.ListAuthSessions(ctx)
	if err != nil {
		sw.logger.Warn("listing auth sessions", "err", err)
		return
	}

	now := sw.clock.Now()
	deleted, failed := 0, 0
	for _, sess := range sessions {
		expiresAt, err := sessionExpiry(sess.Session)
		if err != nil {
			failed++
			sw.logger.Warn("unparsable session row left in place", "key", sess.Key, "err", err)
			continue
		}
		if !expiresAt.Before(now) {
			continue
		}
		if err := sw.store.DeleteAuthSession(ctx, sess.Key); err != nil {
			failed++
			sw.logger.Warn("deleting expired session", "key", sess.Key, "err", err)
			continue
		}
		deleted++
	}

	sw.logger.Info("session sweep complete",
		"scanned", len(sessions), "deleted", deleted, "failed", failed)
}

// sessionExpiry extracts the token-set expiry from a session payload.
// The auth component writes expires_at either as an RFC3339 string or as a
// numeric epoch (seconds or, for large values, milliseconds).
func sessionExpiry(payload string) (time.Time, error) {
	var doc struct {
		TokenSet struct {
			ExpiresAt json.RawMessage `json:"expires_at"`
		} `json:"tokenSet"`
	}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return time.Time{}, fmt.Errorf("decoding session payload: %w", err)
	}
	raw := doc.TokenSet.ExpiresAt
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("session payload has no tokenSet.expires_at")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing expires_at %q: %w", s, err)
		}
		return t, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, fmt.Errorf("expires_at is neither string nor number")
	}
	// Epochs past the year 33658 in seconds are milliseconds.
	const msThreshold = 1e12
	if n >= msThreshold {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	return time.Unix(int64(n), 0).UTC(), nil
}
