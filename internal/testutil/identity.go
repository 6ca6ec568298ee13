package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"skymirror/internal/identity"
)

// FakeDirectory is a scriptable identity.Directory. Unknown identifiers
// fail resolution; specific identifiers can be made to fail explicitly.
type FakeDirectory struct {
	mu      sync.Mutex
	docs    map[string]*identity.DIDDocument
	handles map[string]string
	failing map[string]error

	didLookups int
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{
		docs:    make(map[string]*identity.DIDDocument),
		handles: make(map[string]string),
		failing: make(map[string]error),
	}
}

// AddIdentity registers a DID with its handle and binds the handle back to
// the DID.
func (d *FakeDirectory) AddIdentity(did, handle string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[did] = &identity.DIDDocument{DID: did, Handle: handle}
	d.handles[handle] = did
}

// BindHandle points a handle at a DID, independent of any document, so
// tests can construct round-trip mismatches.
func (d *FakeDirectory) BindHandle(handle, did string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles[handle] = did
}

// FailDID makes resolution of did fail with err.
func (d *FakeDirectory) FailDID(did string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[did] = err
}

// DIDLookups reports how many ResolveDID calls reached this directory.
func (d *FakeDirectory) DIDLookups() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.didLookups
}

func (d *FakeDirectory) ResolveDID(_ context.Context, did string) (*identity.DIDDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.didLookups++
	if err, ok := d.failing[did]; ok {
		return nil, err
	}
	doc, ok := d.docs[did]
	if !ok {
		return nil, fmt.Errorf("did %s not found", did)
	}
	return doc, nil
}

func (d *FakeDirectory) ResolveHandle(_ context.Context, handle string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	did, ok := d.handles[handle]
	if !ok {
		return "", fmt.Errorf("handle %s not found", handle)
	}
	return did, nil
}

// FakeProfileSource is a scriptable identity.ProfileSource.
type FakeProfileSource struct {
	mu       sync.Mutex
	profiles map[string]string
	records  map[string]json.RawMessage
	fail     map[string]error
}

func NewFakeProfileSource() *FakeProfileSource {
	return &FakeProfileSource{
		profiles: make(map[string]string),
		records:  make(map[string]json.RawMessage),
		fail:     make(map[string]error),
	}
}

// AddProfile sets the first-party display name for a DID.
func (p *FakeProfileSource) AddProfile(did, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[did] = displayName
}

// AddRecord sets the repo profile record for a DID.
func (p *FakeProfileSource) AddRecord(did string, record json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[did] = record
}

// FailProfile makes the first-party lookup for did fail with err.
func (p *FakeProfileSource) FailProfile(did string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[did] = err
}

func (p *FakeProfileSource) GetProfile(_ context.Context, actor string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fail[actor]; ok {
		return "", err
	}
	return p.profiles[actor], nil
}

func (p *FakeProfileSource) GetRecord(_ context.Context, repo, collection, rkey string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[repo]
	if !ok {
		return nil, fmt.Errorf("record %s/%s/%s not found", repo, collection, rkey)
	}
	return rec, nil
}

var (
	_ identity.Directory     = (*FakeDirectory)(nil)
	_ identity.ProfileSource = (*FakeProfileSource)(nil)
)
