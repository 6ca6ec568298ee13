package testutil

import (
	"context"
	"database/sql"
	"testing"

	"skymirror/internal/database"
	"skymirror/internal/database/migrations"
	"skymirror/internal/mirror"
)

// NewTestStore creates an in-memory SQLite store with the schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	store, _ := NewTestStoreWithDB(t)
	return store
}

// NewTestStoreWithDB additionally exposes the underlying connection, for
// tests that seed rows owned by external components (session blobs).
func NewTestStoreWithDB(t *testing.T) (*database.SQLiteStore, *sql.DB) {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := migrations.Up(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(sqlDB)
	t.Cleanup(func() {
		store.Close()
	})
	return store, sqlDB
}

// SeedAuthSession inserts a session row the way the external auth component
// would.
func SeedAuthSession(t *testing.T, db *sql.DB, key, payload string) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO auth_session (key, session) VALUES (?, ?)", key, payload); err != nil {
		t.Fatalf("seeding auth session %s: %v", key, err)
	}
}

// FlakyStore wraps a Store and fails selected operations, for testing
// failure isolation.
type FlakyStore struct {
	mirror.Store
	UpsertErr error
	DeleteErr error
	ListErr   error
}

func (f *FlakyStore) UpsertStatus(ctx context.Context, rec mirror.StatusRecord) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	return f.Store.UpsertStatus(ctx, rec)
}

func (f *FlakyStore) UpsertMovie(ctx context.Context, rec mirror.MovieRecord) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	return f.Store.UpsertMovie(ctx, rec)
}

func (f *FlakyStore) DeleteStatus(ctx context.Context, uri string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Store.DeleteStatus(ctx, uri)
}

func (f *FlakyStore) DeleteMovie(ctx context.Context, uri string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Store.DeleteMovie(ctx, uri)
}

func (f *FlakyStore) DeleteAuthSession(ctx context.Context, key string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Store.DeleteAuthSession(ctx, key)
}

func (f *FlakyStore) ListAuthSessions(ctx context.Context) ([]mirror.AuthSession, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Store.ListAuthSessions(ctx)
}
