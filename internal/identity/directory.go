package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// DIDDocument is the subset of a resolved DID document this service uses.
type DIDDocument struct {
	DID    string
	Handle string
	PDS    string
}

// Directory resolves identifiers against the identity network. Both calls
// may fail independently; callers are expected to isolate failures per
// identifier.
type Directory interface {
	// ResolveDID fetches the DID document for did.
	ResolveDID(ctx context.Context, did string) (*DIDDocument, error)

	// ResolveHandle resolves a handle to the DID currently claiming it.
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// HTTPDirectory resolves did:plc DIDs via a PLC directory host, did:web DIDs
// via their well-known document, and handles via the well-known atproto-did
// endpoint.
type HTTPDirectory struct {
	PLCHost string
	Client  *http.Client
}

// DefaultPLCHost is the public PLC directory.
const DefaultPLCHost = "https://plc.directory"

func NewHTTPDirectory(plcHost string, client *http.Client) *HTTPDirectory {
	if plcHost == "" {
		plcHost = DefaultPLCHost
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDirectory{PLCHost: plcHost, Client: client}
}

// didDoc is the wire shape of a DID document, as served by PLC and did:web
// hosts.
type didDoc struct {
	ID          string   `json:"id"`
	AlsoKnownAs []string `json:"alsoKnownAs"`
	Service     []struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}

func (d *HTTPDirectory) ResolveDID(ctx context.Context, did string) (*DIDDocument, error) {
	parsed, err := syntax.ParseDID(did)
	if err != nil {
		return nil, fmt.Errorf("invalid did %q: %w", did, err)
	}

	var url string
	switch parsed.Method() {
	case "plc":
		url = d.PLCHost + "/" + parsed.String()
	case "web":
		host := strings.TrimPrefix(parsed.String(), "did:web:")
		url = "https://" + host + "/.well-known/did.json"
	default:
		return nil, fmt.Errorf("unsupported did method %q", parsed.Method())
	}

	body, err := d.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching did document for %s: %w", did, err)
	}

	var doc didDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding did document for %s: %w", did, err)
	}
	if doc.ID != parsed.String() {
		return nil, fmt.Errorf("did document id %q does not match %s", doc.ID, did)
	}

	result := &DIDDocument{DID: doc.ID}
	for _, aka := range doc.AlsoKnownAs {
		if h, ok := strings.CutPrefix(aka, "at://"); ok {
			result.Handle = h
			break
		}
	}
	for _, svc := range doc.Service {
		if svc.Type == "AtprotoPersonalDataServer" || strings.HasSuffix(svc.ID, "#atproto_pds") {
			result.PDS = svc.ServiceEndpoint
			break
		}
	}
	return result, nil
}

func (d *HTTPDirectory) ResolveHandle(ctx context.Context, handle string) (string, error) {
	parsed, err := syntax.ParseHandle(handle)
	if err != nil {
		return "", fmt.Errorf("invalid handle %q: %w", handle, err)
	}

	// DNS TXT resolution is skipped: the well-known endpoint is authoritative
	// for every PDS this service talks to.
	url := "https://" + parsed.Normalize().String() + "/.well-known/atproto-did"
	body, err := d.get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("resolving handle %s: %w", handle, err)
	}

	did, err := syntax.ParseDID(strings.TrimSpace(string(body)))
	if err != nil {
		return "", fmt.Errorf("handle %s resolved to invalid did: %w", handle, err)
	}
	return did.String(), nil
}

func (d *HTTPDirectory) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// CachedDirectory layers a DIDCache over another Directory. Handle
// resolution is passed through uncached: handles are mutable bindings and
// the round-trip check depends on their current state.
type CachedDirectory struct {
	inner Directory
	cache *DIDCache
}

func NewCachedDirectory(inner Directory, cache *DIDCache) *CachedDirectory {
	return &CachedDirectory{inner: inner, cache: cache}
}

func (d *CachedDirectory) ResolveDID(ctx context.Context, did string) (*DIDDocument, error) {
	if doc, ok, err := d.cache.Get(did); ok {
		return doc, err
	}
	doc, err := d.inner.ResolveDID(ctx, did)
	if err != nil {
		d.cache.PutFailure(did, err)
		return nil, err
	}
	d.cache.PutSuccess(did, doc)
	return doc, nil
}

func (d *CachedDirectory) ResolveHandle(ctx context.Context, handle string) (string, error) {
	return d.inner.ResolveHandle(ctx, handle)
}

var (
	_ Directory = (*HTTPDirectory)(nil)
	_ Directory = (*CachedDirectory)(nil)
)
