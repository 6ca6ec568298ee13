package mirror

import (
	"context"
	"encoding/json"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"skymirror/internal/lexicon"
)

// EventKind tags a feed event as a create, update, or delete.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one record mutation delivered by the feed transport. Record is
// nil for deletes. TimeUS is the transport's event timestamp in microseconds;
// it is used for cursor resume only, never for conflict resolution.
type Event struct {
	Kind       EventKind
	DID        string
	Collection string
	URI        string
	TimeUS     int64
	Record     json.RawMessage
}

// Ingester reconciles feed events into the local mirror. The transport may
// redeliver events or deliver them out of order; every mutation is an
// idempotent upsert or delete keyed by URI, so redelivery converges.
type Ingester struct {
	store  Store
	logger Logger
	clock  Clock
}

func NewIngester(store Store, logger Logger, clock Clock) *Ingester {
	return &Ingester{store: store, logger: logger, clock: clock}
}

// HandleEvent applies one feed event to the mirror. It never returns an
// error and never panics: the transport's read loop must keep running, so
// every failure is logged and the event dropped. The feed is the source of
// truth and will re-supply any state a dropped event carried.
func (ig *Ingester) HandleEvent(ctx context.Context, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			ig.logger.Error("panic applying feed event", "uri", evt.URI, "panic", r)
		}
	}()

	if evt.Collection != CollectionStatus && evt.Collection != CollectionMovie {
		return
	}

	uri, err := syntax.ParseATURI(evt.URI)
	if err != nil {
		ig.logger.Warn("feed event with invalid at-uri", "uri", evt.URI, "err", err)
		return
	}
	did, err := syntax.ParseDID(evt.DID)
	if err != nil {
		ig.logger.Warn("feed event with invalid did", "did", evt.DID, "err", err)
		return
	}

	switch evt.Kind {
	case EventCreate, EventUpdate:
		ig.applyWrite(ctx, evt, uri.String(), did.String())
	case EventDelete:
		ig.applyDelete(ctx, evt, uri.String())
	default:
		ig.logger.Warn("feed event with unknown kind", "kind", string(evt.Kind), "uri", evt.URI)
	}
}

func (ig *Ingester) applyWrite(ctx context.Context, evt Event, uri, did string) {
	now := FormatTime(ig.clock.Now())

	switch evt.Collection {
	case CollectionStatus:
		rec, err := lexicon.ParseStatus(evt.Record)
		if err != nil {
			// Garbage from the network is expected, not exceptional.
			ig.logger.Debug("skipping unschematic status record", "uri", uri, "err", err)
			return
		}
		err = ig.store.UpsertStatus(ctx, StatusRecord{
			URI:       uri,
			AuthorDID: did,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
			IndexedAt: now,
		})
		if err != nil {
			ig.logger.Warn("upserting status", "uri", uri, "err", err)
		}

	case CollectionMovie:
		rec, err := lexicon.ParseMovie(evt.Record)
		if err != nil {
			ig.logger.Debug("skipping unschematic movie record", "uri", uri, "err", err)
			return
		}
		rate, err := lexicon.ParseRate(rec.Rate)
		if err != nil {
			ig.logger.Debug("skipping movie record with bad rate", "uri", uri, "err", err)
			return
		}
		err = ig.store.UpsertMovie(ctx, MovieRecord{
			URI:           uri,
			AuthorDID:     did,
			Name:          rec.Name,
			Rate:          rate,
			WatchedBefore: rec.WatchedBefore,
			Liked:         rec.Liked,
			Review:        rec.Review,
			CreatedAt:     rec.CreatedAt,
			IndexedAt:     now,
		})
		if err != nil {
			ig.logger.Warn("upserting movie", "uri", uri, "err", err)
		}
	}
}

func (ig *Ingester) applyDelete(ctx context.Context, evt Event, uri string) {
	var err error
	switch evt.Collection {
	case CollectionStatus:
		err = ig.store.DeleteStatus(ctx, uri)
	case CollectionMovie:
		err = ig.store.DeleteMovie(ctx, uri)
	}
	if err != nil {
		ig.logger.Warn("deleting record", "uri", uri, "err", err)
	}
}
