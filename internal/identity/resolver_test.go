package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"skymirror/internal/identity"
	"skymirror/internal/mirror"
	"skymirror/internal/testutil"
)

const (
	aliceDID = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"
	bobDID   = "did:plc:44ybard66vv44zksje25o7dz"
	carolDID = "did:plc:oky5czdrnfjpqslsw2a5iclo"
)

func newResolver(dir identity.Directory, profiles identity.ProfileSource) *identity.Resolver {
	return identity.NewResolver(dir, profiles, mirror.NewNopLogger(), 4)
}

func TestResolver_ResolveHandle(t *testing.T) {
	t.Run("returns handle on round-trip match", func(t *testing.T) {
		dir := testutil.NewFakeDirectory()
		dir.AddIdentity(aliceDID, "alice.example.com")

		got := newResolver(dir, nil).ResolveHandle(context.Background(), aliceDID)
		if got != "alice.example.com" {
			t.Errorf("ResolveHandle() = %q, want alice.example.com", got)
		}
	})

	t.Run("returns did when round trip mismatches", func(t *testing.T) {
		dir := testutil.NewFakeDirectory()
		dir.AddIdentity(aliceDID, "alice.example.com")
		// Forge: alice's document claims a handle that actually belongs to bob.
		dir.BindHandle("alice.example.com", bobDID)

		got := newResolver(dir, nil).ResolveHandle(context.Background(), aliceDID)
		if got != aliceDID {
			t.Errorf("ResolveHandle() = %q, want the original did", got)
		}
	})

	t.Run("returns did on resolution failure", func(t *testing.T) {
		dir := testutil.NewFakeDirectory()
		dir.FailDID(aliceDID, errors.New("network down"))

		got := newResolver(dir, nil).ResolveHandle(context.Background(), aliceDID)
		if got != aliceDID {
			t.Errorf("ResolveHandle() = %q, want the original did", got)
		}
	})
}

func TestResolver_ResolveHandles(t *testing.T) {
	t.Run("batch is complete even when one member fails", func(t *testing.T) {
		dir := testutil.NewFakeDirectory()
		dir.AddIdentity(aliceDID, "alice.example.com")
		dir.AddIdentity(carolDID, "carol.example.com")
		dir.FailDID(bobDID, errors.New("unresolvable"))

		got := newResolver(dir, nil).ResolveHandles(context.Background(),
			[]string{aliceDID, bobDID, carolDID})

		if len(got) != 3 {
			t.Fatalf("entry count = %d, want 3", len(got))
		}
		if got[aliceDID] != "alice.example.com" {
			t.Errorf("alice = %q, want alice.example.com", got[aliceDID])
		}
		if got[bobDID] != bobDID {
			t.Errorf("bob = %q, want fallback to did", got[bobDID])
		}
		if got[carolDID] != "carol.example.com" {
			t.Errorf("carol = %q, want carol.example.com", got[carolDID])
		}
	})

	t.Run("duplicate inputs collapse to one lookup", func(t *testing.T) {
		dir := testutil.NewFakeDirectory()
		dir.AddIdentity(aliceDID, "alice.example.com")

		got := newResolver(dir, nil).ResolveHandles(context.Background(),
			[]string{aliceDID, aliceDID, aliceDID})

		if len(got) != 1 {
			t.Errorf("entry count = %d, want 1", len(got))
		}
		if n := dir.DIDLookups(); n != 1 {
			t.Errorf("directory lookups = %d, want 1", n)
		}
	})

	t.Run("empty input yields empty map", func(t *testing.T) {
		got := newResolver(testutil.NewFakeDirectory(), nil).ResolveHandles(context.Background(), nil)
		if len(got) != 0 {
			t.Errorf("entry count = %d, want 0", len(got))
		}
	})
}

func TestResolver_ResolveDisplayName(t *testing.T) {
	t.Run("prefers the first-party profile", func(t *testing.T) {
		profiles := testutil.NewFakeProfileSource()
		profiles.AddProfile(aliceDID, "Alice")
		profiles.AddRecord(aliceDID, json.RawMessage(`{"$type":"app.bsky.actor.profile","displayName":"Old Alice"}`))

		got := newResolver(testutil.NewFakeDirectory(), profiles).
			ResolveDisplayName(context.Background(), aliceDID)
		if got != "Alice" {
			t.Errorf("ResolveDisplayName() = %q, want Alice", got)
		}
	})

	t.Run("falls back to the repo profile record", func(t *testing.T) {
		profiles := testutil.NewFakeProfileSource()
		profiles.FailProfile(aliceDID, errors.New("appview unavailable"))
		profiles.AddRecord(aliceDID, json.RawMessage(`{"$type":"app.bsky.actor.profile","displayName":"Alice from repo"}`))

		got := newResolver(testutil.NewFakeDirectory(), profiles).
			ResolveDisplayName(context.Background(), aliceDID)
		if got != "Alice from repo" {
			t.Errorf("ResolveDisplayName() = %q, want Alice from repo", got)
		}
	})

	t.Run("falls back to the did when both tiers fail", func(t *testing.T) {
		profiles := testutil.NewFakeProfileSource()
		profiles.FailProfile(aliceDID, errors.New("appview unavailable"))

		got := newResolver(testutil.NewFakeDirectory(), profiles).
			ResolveDisplayName(context.Background(), aliceDID)
		if got != aliceDID {
			t.Errorf("ResolveDisplayName() = %q, want the did", got)
		}
	})

	t.Run("unschematic repo record falls back to the did", func(t *testing.T) {
		profiles := testutil.NewFakeProfileSource()
		profiles.AddRecord(aliceDID, json.RawMessage(`{"$type":"something.else"}`))

		got := newResolver(testutil.NewFakeDirectory(), profiles).
			ResolveDisplayName(context.Background(), aliceDID)
		if got != aliceDID {
			t.Errorf("ResolveDisplayName() = %q, want the did", got)
		}
	})

	t.Run("nil profile source degrades to the did", func(t *testing.T) {
		got := newResolver(testutil.NewFakeDirectory(), nil).
			ResolveDisplayName(context.Background(), aliceDID)
		if got != aliceDID {
			t.Errorf("ResolveDisplayName() = %q, want the did", got)
		}
	})
}

func TestResolver_ResolveDisplayNames(t *testing.T) {
	profiles := testutil.NewFakeProfileSource()
	profiles.AddProfile(aliceDID, "Alice")
	profiles.FailProfile(bobDID, errors.New("unavailable"))

	got := newResolver(testutil.NewFakeDirectory(), profiles).
		ResolveDisplayNames(context.Background(), []string{aliceDID, bobDID})

	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2", len(got))
	}
	if got[aliceDID] != "Alice" {
		t.Errorf("alice = %q, want Alice", got[aliceDID])
	}
	if got[bobDID] != bobDID {
		t.Errorf("bob = %q, want fallback to did", got[bobDID])
	}
}
