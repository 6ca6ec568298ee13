// Package database implements the mirror.Store interface on SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skymirror/internal/database/migrations"
	"skymirror/internal/mirror"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements mirror.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite store at path. path can be a file path or
// ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the mirror relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The feed consumer and the sweeper write concurrently; WAL plus a busy
	// timeout keeps single-row upserts/deletes from failing under contention.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", p, err)
		}
	}

	return db, nil
}

// Status operations

func (s *SQLiteStore) UpsertStatus(ctx context.Context, rec mirror.StatusRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status (uri, author_did, status, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			status = excluded.status,
			indexed_at = excluded.indexed_at`,
		rec.URI, rec.AuthorDID, rec.Status, rec.CreatedAt, rec.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting status %s: %w", rec.URI, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteStatus(ctx context.Context, uri string) error {
	// Zero rows affected is success: delete is idempotent.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM status WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("deleting status %s: %w", uri, err)
	}
	return nil
}

func (s *SQLiteStore) GetStatus(ctx context.Context, uri string) (*mirror.StatusRecord, error) {
	var rec mirror.StatusRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT uri, author_did, status, created_at, indexed_at FROM status WHERE uri = ?", uri,
	).Scan(&rec.URI, &rec.AuthorDID, &rec.Status, &rec.CreatedAt, &rec.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting status %s: %w", uri, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) ListStatuses(ctx context.Context, limit int) ([]mirror.StatusRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT uri, author_did, status, created_at, indexed_at FROM status ORDER BY indexed_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", err)
	}
	defer rows.Close()

	var result []mirror.StatusRecord
	for rows.Next() {
		var rec mirror.StatusRecord
		if err := rows.Scan(&rec.URI, &rec.AuthorDID, &rec.Status, &rec.CreatedAt, &rec.IndexedAt); err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) LatestStatusByAuthor(ctx context.Context, did string) (*mirror.StatusRecord, error) {
	var rec mirror.StatusRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT uri, author_did, status, created_at, indexed_at FROM status
		WHERE author_did = ? ORDER BY indexed_at DESC LIMIT 1`, did,
	).Scan(&rec.URI, &rec.AuthorDID, &rec.Status, &rec.CreatedAt, &rec.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest status for %s: %w", did, err)
	}
	return &rec, nil
}

// Movie operations

func (s *SQLiteStore) UpsertMovie(ctx context.Context, rec mirror.MovieRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO movie (uri, author_did, name, rate, watched_before, liked, review, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			name = excluded.name,
			rate = excluded.rate,
			watched_before = excluded.watched_before,
			liked = excluded.liked,
			review = excluded.review,
			indexed_at = excluded.indexed_at`,
		rec.URI, rec.AuthorDID, rec.Name, rec.Rate,
		boolToInt(rec.WatchedBefore), boolToInt(rec.Liked),
		rec.Review, rec.CreatedAt, rec.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting movie %s: %w", rec.URI, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteMovie(ctx context.Context, uri string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM movie WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("deleting movie %s: %w", uri, err)
	}
	return nil
}

func (s *SQLiteStore) GetMovie(ctx context.Context, uri string) (*mirror.MovieRecord, error) {
	var (
		rec           mirror.MovieRecord
		watchedBefore int
		liked         int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT uri, author_did, name, rate, watched_before, liked, review, created_at, indexed_at
		FROM movie WHERE uri = ?`, uri,
	).Scan(&rec.URI, &rec.AuthorDID, &rec.Name, &rec.Rate, &watchedBefore, &liked,
		&rec.Review, &rec.CreatedAt, &rec.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movie %s: %w", uri, err)
	}
	rec.WatchedBefore = watchedBefore != 0
	rec.Liked = liked != 0
	return &rec, nil
}

func (s *SQLiteStore) ListMovies(ctx context.Context, limit int) ([]mirror.MovieRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, author_did, name, rate, watched_before, liked, review, created_at, indexed_at
		FROM movie ORDER BY indexed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing movies: %w", err)
	}
	defer rows.Close()

	var result []mirror.MovieRecord
	for rows.Next() {
		var (
			rec           mirror.MovieRecord
			watchedBefore int
			liked         int
		)
		if err := rows.Scan(&rec.URI, &rec.AuthorDID, &rec.Name, &rec.Rate, &watchedBefore,
			&liked, &rec.Review, &rec.CreatedAt, &rec.IndexedAt); err != nil {
			return nil, fmt.Errorf("scanning movie row: %w", err)
		}
		rec.WatchedBefore = watchedBefore != 0
		rec.Liked = liked != 0
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Auth session operations

func (s *SQLiteStore) ListAuthSessions(ctx context.Context) ([]mirror.AuthSession, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, session FROM auth_session")
	if err != nil {
		return nil, fmt.Errorf("listing auth sessions: %w", err)
	}
	defer rows.Close()

	var result []mirror.AuthSession
	for rows.Next() {
		var sess mirror.AuthSession
		if err := rows.Scan(&sess.Key, &sess.Session); err != nil {
			return nil, fmt.Errorf("scanning auth session row: %w", err)
		}
		result = append(result, sess)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) DeleteAuthSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_session WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting auth session %s: %w", key, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Migrate brings the database schema to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.Up(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time check that SQLiteStore implements mirror.Store.
var _ mirror.Store = (*SQLiteStore)(nil)
