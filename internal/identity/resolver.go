// Package identity maps DIDs to human-facing names. Every public operation
// is total: per-identifier failures are swallowed and substituted with the
// DID itself, so callers always get a usable (if degraded) name and batch
// results are never partial.
package identity

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"skymirror/internal/lexicon"
	"skymirror/internal/mirror"
)

// DefaultConcurrency bounds the fan-out of batch resolution. Large batches
// would otherwise burst one outbound lookup per DID at the identity network.
const DefaultConcurrency = 16

// Resolver composes directory and profile lookups into best-effort names.
type Resolver struct {
	dir         Directory
	profiles    ProfileSource
	logger      mirror.Logger
	concurrency int
}

// NewResolver creates a Resolver. concurrency <= 0 falls back to
// DefaultConcurrency. profiles may be nil, in which case display-name
// resolution degrades to the DID itself.
func NewResolver(dir Directory, profiles ProfileSource, logger mirror.Logger, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{dir: dir, profiles: profiles, logger: logger, concurrency: concurrency}
}

// ResolveHandle resolves a DID to its current handle. The claimed handle is
// resolved back to a DID and returned only if the round trip matches,
// guarding against spoofed or stale handle claims in the DID document. On
// any failure or mismatch the DID itself is returned.
func (r *Resolver) ResolveHandle(ctx context.Context, did string) string {
	doc, err := r.dir.ResolveDID(ctx, did)
	if err != nil {
		r.logger.Warn("resolving did document", "did", did, "err", err)
		return did
	}
	if doc.Handle == "" {
		return did
	}

	back, err := r.dir.ResolveHandle(ctx, doc.Handle)
	if err != nil {
		r.logger.Warn("resolving claimed handle", "did", did, "handle", doc.Handle, "err", err)
		return did
	}
	if back != did {
		r.logger.Warn("handle round-trip mismatch", "did", did, "handle", doc.Handle, "resolved", back)
		return did
	}
	return doc.Handle
}

// ResolveHandles resolves a batch of DIDs concurrently. The result always
// contains exactly one entry per input DID; failed resolutions map the DID
// to itself.
func (r *Resolver) ResolveHandles(ctx context.Context, dids []string) map[string]string {
	return r.resolveAll(ctx, dids, r.ResolveHandle)
}

// ResolveDisplayName resolves a DID to a display name, trying the
// authenticated first-party profile first, then the actor's own profile
// record, then falling back to the DID itself.
func (r *Resolver) ResolveDisplayName(ctx context.Context, did string) string {
	if r.profiles == nil {
		return did
	}

	name, err := r.profiles.GetProfile(ctx, did)
	if err != nil {
		r.logger.Warn("fetching first-party profile", "did", did, "err", err)
	} else if name != "" {
		return name
	}

	raw, err := r.profiles.GetRecord(ctx, did, lexicon.TypeProfile, "self")
	if err != nil {
		r.logger.Warn("fetching profile record", "did", did, "err", err)
		return did
	}
	prof, err := lexicon.ParseProfile(raw)
	if err != nil {
		r.logger.Debug("unschematic profile record", "did", did, "err", err)
		return did
	}
	if prof.DisplayName == "" {
		return did
	}
	return prof.DisplayName
}

// ResolveDisplayNames is the batch form of ResolveDisplayName, with the same
// completeness guarantee as ResolveHandles.
func (r *Resolver) ResolveDisplayNames(ctx context.Context, dids []string) map[string]string {
	return r.resolveAll(ctx, dids, r.ResolveDisplayName)
}

// resolveAll fans resolve out over dids with bounded concurrency and
// assembles a complete map. resolve must be total.
func (r *Resolver) resolveAll(ctx context.Context, dids []string, resolve func(context.Context, string) string) map[string]string {
	result := make(map[string]string, len(dids))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for _, did := range dids {
		// Duplicate inputs collapse to one lookup.
		mu.Lock()
		_, seen := result[did]
		if !seen {
			result[did] = did
		}
		mu.Unlock()
		if seen {
			continue
		}

		g.Go(func() error {
			name := resolve(ctx, did)
			mu.Lock()
			result[did] = name
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return result
}
