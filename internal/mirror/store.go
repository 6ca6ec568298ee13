package mirror

import "context"

// Store provides keyed access to the local mirror tables. Implementations
// must make single-row upsert and delete atomic; no cross-row locking is
// assumed by callers.
type Store interface {
	// UpsertStatus inserts the record or, if a row with the same URI exists,
	// refreshes its mutable fields. AuthorDID and CreatedAt are immutable
	// after creation and must not be overwritten on conflict.
	UpsertStatus(ctx context.Context, rec StatusRecord) error

	// DeleteStatus removes the row with the given URI. Deleting a URI that
	// does not exist is a no-op, not an error.
	DeleteStatus(ctx context.Context, uri string) error

	// GetStatus returns the row for uri, or nil if it does not exist.
	GetStatus(ctx context.Context, uri string) (*StatusRecord, error)

	// ListStatuses returns up to limit rows ordered by indexed_at descending.
	ListStatuses(ctx context.Context, limit int) ([]StatusRecord, error)

	// LatestStatusByAuthor returns the author's most recently indexed status,
	// or nil if they have none.
	LatestStatusByAuthor(ctx context.Context, did string) (*StatusRecord, error)

	// UpsertMovie follows the same conflict policy as UpsertStatus: all
	// payload fields refresh except AuthorDID and CreatedAt.
	UpsertMovie(ctx context.Context, rec MovieRecord) error

	DeleteMovie(ctx context.Context, uri string) error
	GetMovie(ctx context.Context, uri string) (*MovieRecord, error)
	ListMovies(ctx context.Context, limit int) ([]MovieRecord, error)

	// ListAuthSessions returns all session rows.
	ListAuthSessions(ctx context.Context) ([]AuthSession, error)

	// DeleteAuthSession removes a session row by key. Missing key is a no-op.
	DeleteAuthSession(ctx context.Context, key string) error

	Close() error
}
