package database_test

import (
	"context"
	"testing"

	"skymirror/internal/mirror"
	"skymirror/internal/testutil"
)

const (
	testURI = "at://did:plc:ewvi7nxzyoun6zhxrhs64oiz/xyz.statusphere.status/3jzfcijpj2z2a"
	testDID = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"
)

func TestSQLiteStore_StatusUpsert(t *testing.T) {
	t.Run("insert then get round-trips", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		rec := mirror.StatusRecord{
			URI:       testURI,
			AuthorDID: testDID,
			Status:    "👍",
			CreatedAt: "2024-01-15T09:00:00.000Z",
			IndexedAt: "2024-01-15T10:30:00.000Z",
		}
		if err := store.UpsertStatus(ctx, rec); err != nil {
			t.Fatalf("UpsertStatus() error = %v", err)
		}

		got, err := store.GetStatus(ctx, testURI)
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if got == nil || *got != rec {
			t.Errorf("GetStatus() = %+v, want %+v", got, rec)
		}
	})

	t.Run("conflict keeps author and createdAt", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		first := mirror.StatusRecord{
			URI: testURI, AuthorDID: testDID, Status: "👍",
			CreatedAt: "2024-01-15T09:00:00.000Z", IndexedAt: "2024-01-15T10:30:00.000Z",
		}
		store.UpsertStatus(ctx, first)

		second := first
		second.AuthorDID = "did:plc:44ybard66vv44zksje25o7dz" // must not take effect
		second.Status = "🚀"
		second.CreatedAt = "2024-01-15T11:00:00.000Z" // must not take effect
		second.IndexedAt = "2024-01-15T11:00:00.000Z"
		if err := store.UpsertStatus(ctx, second); err != nil {
			t.Fatalf("UpsertStatus() conflict error = %v", err)
		}

		got, _ := store.GetStatus(ctx, testURI)
		if got.Status != "🚀" || got.IndexedAt != "2024-01-15T11:00:00.000Z" {
			t.Errorf("mutable fields not refreshed: %+v", got)
		}
		if got.AuthorDID != testDID || got.CreatedAt != "2024-01-15T09:00:00.000Z" {
			t.Errorf("immutable fields changed: %+v", got)
		}
	})

	t.Run("get of missing uri returns nil without error", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		got, err := store.GetStatus(context.Background(), testURI)
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if got != nil {
			t.Errorf("GetStatus() = %+v, want nil", got)
		}
	})

	t.Run("delete of missing uri succeeds", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		if err := store.DeleteStatus(context.Background(), testURI); err != nil {
			t.Errorf("DeleteStatus() error = %v", err)
		}
	})
}

func TestSQLiteStore_Listing(t *testing.T) {
	t.Run("statuses come back newest first", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		for i, indexedAt := range []string{
			"2024-01-15T10:00:00.000Z",
			"2024-01-15T12:00:00.000Z",
			"2024-01-15T11:00:00.000Z",
		} {
			store.UpsertStatus(ctx, mirror.StatusRecord{
				URI:       testURI + string(rune('a'+i)),
				AuthorDID: testDID,
				Status:    "👍",
				CreatedAt: indexedAt,
				IndexedAt: indexedAt,
			})
		}

		rows, err := store.ListStatuses(ctx, 2)
		if err != nil {
			t.Fatalf("ListStatuses() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("row count = %d, want 2", len(rows))
		}
		if rows[0].IndexedAt != "2024-01-15T12:00:00.000Z" || rows[1].IndexedAt != "2024-01-15T11:00:00.000Z" {
			t.Errorf("rows out of order: %+v", rows)
		}
	})

	t.Run("latest status by author", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		store.UpsertStatus(ctx, mirror.StatusRecord{
			URI: testURI + "a", AuthorDID: testDID, Status: "👍",
			CreatedAt: "x", IndexedAt: "2024-01-15T10:00:00.000Z",
		})
		store.UpsertStatus(ctx, mirror.StatusRecord{
			URI: testURI + "b", AuthorDID: testDID, Status: "🚀",
			CreatedAt: "x", IndexedAt: "2024-01-15T11:00:00.000Z",
		})

		got, err := store.LatestStatusByAuthor(ctx, testDID)
		if err != nil {
			t.Fatalf("LatestStatusByAuthor() error = %v", err)
		}
		if got == nil || got.Status != "🚀" {
			t.Errorf("LatestStatusByAuthor() = %+v, want the 🚀 row", got)
		}

		none, err := store.LatestStatusByAuthor(ctx, "did:plc:44ybard66vv44zksje25o7dz")
		if err != nil {
			t.Fatalf("LatestStatusByAuthor() error = %v", err)
		}
		if none != nil {
			t.Errorf("LatestStatusByAuthor() = %+v, want nil", none)
		}
	})
}

func TestSQLiteStore_Movie(t *testing.T) {
	movieURI := "at://" + testDID + "/xyz.statusphere.movie/3jzfcijpj2z2a"

	t.Run("booleans survive the integer round-trip", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		rec := mirror.MovieRecord{
			URI: movieURI, AuthorDID: testDID, Name: "Stalker", Rate: 4.5,
			WatchedBefore: true, Liked: false, Review: "slow burn",
			CreatedAt: "2024-01-15T09:00:00.000Z", IndexedAt: "2024-01-15T10:30:00.000Z",
		}
		if err := store.UpsertMovie(ctx, rec); err != nil {
			t.Fatalf("UpsertMovie() error = %v", err)
		}

		got, err := store.GetMovie(ctx, movieURI)
		if err != nil {
			t.Fatalf("GetMovie() error = %v", err)
		}
		if got == nil || *got != rec {
			t.Errorf("GetMovie() = %+v, want %+v", got, rec)
		}
	})

	t.Run("conflict refreshes all fields except author and createdAt", func(t *testing.T) {
		store := testutil.NewTestStore(t)
		ctx := context.Background()

		first := mirror.MovieRecord{
			URI: movieURI, AuthorDID: testDID, Name: "Stalker", Rate: 4,
			CreatedAt: "2024-01-15T09:00:00.000Z", IndexedAt: "2024-01-15T10:00:00.000Z",
		}
		store.UpsertMovie(ctx, first)

		second := first
		second.Name = "Stalker (1979)"
		second.Rate = 5
		second.Liked = true
		second.CreatedAt = "2024-01-15T11:00:00.000Z" // must not take effect
		second.IndexedAt = "2024-01-15T11:00:00.000Z"
		store.UpsertMovie(ctx, second)

		got, _ := store.GetMovie(ctx, movieURI)
		if got.Name != "Stalker (1979)" || got.Rate != 5 || !got.Liked {
			t.Errorf("mutable fields not refreshed: %+v", got)
		}
		if got.CreatedAt != "2024-01-15T09:00:00.000Z" {
			t.Errorf("CreatedAt = %q, want original", got.CreatedAt)
		}
	})
}

func TestSQLiteStore_AuthSessions(t *testing.T) {
	store, db := testutil.NewTestStoreWithDB(t)
	ctx := context.Background()

	testutil.SeedAuthSession(t, db, "k1", `{"tokenSet":{}}`)
	testutil.SeedAuthSession(t, db, "k2", `{"tokenSet":{}}`)

	sessions, err := store.ListAuthSessions(ctx)
	if err != nil {
		t.Fatalf("ListAuthSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("session count = %d, want 2", len(sessions))
	}

	if err := store.DeleteAuthSession(ctx, "k1"); err != nil {
		t.Fatalf("DeleteAuthSession() error = %v", err)
	}
	if err := store.DeleteAuthSession(ctx, "missing"); err != nil {
		t.Errorf("DeleteAuthSession(missing) error = %v, want nil", err)
	}

	sessions, _ = store.ListAuthSessions(ctx)
	if len(sessions) != 1 || sessions[0].Key != "k2" {
		t.Errorf("remaining sessions = %+v, want only k2", sessions)
	}
}
