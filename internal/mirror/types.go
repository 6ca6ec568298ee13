package mirror

import "time"

// Collection NSIDs watched by the ingester.
const (
	CollectionStatus = "xyz.statusphere.status"
	CollectionMovie  = "xyz.statusphere.movie"
)

// StatusRecord is the denormalized projection of one status record from the
// network. URI is the AT-URI of the record and the natural key; at most one
// row exists per URI.
type StatusRecord struct {
	URI       string
	AuthorDID string
	Status    string
	CreatedAt string
	IndexedAt string
}

// MovieRecord is the denormalized projection of one movie record.
type MovieRecord struct {
	URI           string
	AuthorDID     string
	Name          string
	Rate          float64
	WatchedBefore bool
	Liked         bool
	Review        string
	CreatedAt     string
	IndexedAt     string
}

// AuthSession is a persisted OAuth session row. The Session payload is an
// opaque JSON blob owned by the auth component; this core only reads it to
// find an embedded expiry and conditionally deletes the row.
type AuthSession struct {
	Key     string
	Session string
}

// FormatTime renders a timestamp the way record timestamps are stored:
// RFC3339 with millisecond precision, UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
