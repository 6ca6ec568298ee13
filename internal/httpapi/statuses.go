package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/go-chi/chi/v5"

	"skymirror/internal/lexicon"
	"skymirror/internal/mirror"
)

const defaultListLimit = 50

type statusView struct {
	URI       string `json:"uri"`
	AuthorDID string `json:"authorDid"`
	Handle    string `json:"handle"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	IndexedAt string `json:"indexedAt"`
}

type movieView struct {
	URI           string  `json:"uri"`
	AuthorDID     string  `json:"authorDid"`
	Handle        string  `json:"handle"`
	Name          string  `json:"name"`
	Rate          float64 `json:"rate"`
	WatchedBefore bool    `json:"watchedBefore"`
	Liked         bool    `json:"liked"`
	Review        string  `json:"review,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	IndexedAt     string  `json:"indexedAt"`
}

func (r *Router) handleListStatuses(w http.ResponseWriter, req *http.Request) {
	statuses, err := r.store.ListStatuses(req.Context(), listLimit(req))
	if err != nil {
		r.logger.Error("listing statuses", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	dids := make([]string, 0, len(statuses))
	for _, s := range statuses {
		dids = append(dids, s.AuthorDID)
	}
	handles := r.resolver.ResolveHandles(req.Context(), dids)

	views := make([]statusView, 0, len(statuses))
	for _, s := range statuses {
		views = append(views, statusView{
			URI:       s.URI,
			AuthorDID: s.AuthorDID,
			Handle:    handles[s.AuthorDID],
			Status:    s.Status,
			CreatedAt: s.CreatedAt,
			IndexedAt: s.IndexedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (r *Router) handleLatestStatus(w http.ResponseWriter, req *http.Request) {
	did := chi.URLParam(req, "did")
	if _, err := syntax.ParseDID(did); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid did"})
		return
	}

	status, err := r.store.LatestStatusByAuthor(req.Context(), did)
	if err != nil {
		r.logger.Error("getting latest status", "did", did, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if status == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no status"})
		return
	}

	writeJSON(w, http.StatusOK, statusView{
		URI:       status.URI,
		AuthorDID: status.AuthorDID,
		Handle:    r.resolver.ResolveHandle(req.Context(), status.AuthorDID),
		Status:    status.Status,
		CreatedAt: status.CreatedAt,
		IndexedAt: status.IndexedAt,
	})
}

func (r *Router) handleListMovies(w http.ResponseWriter, req *http.Request) {
	movies, err := r.store.ListMovies(req.Context(), listLimit(req))
	if err != nil {
		r.logger.Error("listing movies", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	dids := make([]string, 0, len(movies))
	for _, m := range movies {
		dids = append(dids, m.AuthorDID)
	}
	handles := r.resolver.ResolveHandles(req.Context(), dids)

	views := make([]movieView, 0, len(movies))
	for _, m := range movies {
		views = append(views, movieView{
			URI:           m.URI,
			AuthorDID:     m.AuthorDID,
			Handle:        handles[m.AuthorDID],
			Name:          m.Name,
			Rate:          m.Rate,
			WatchedBefore: m.WatchedBefore,
			Liked:         m.Liked,
			Review:        m.Review,
			CreatedAt:     m.CreatedAt,
			IndexedAt:     m.IndexedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleCreateStatus performs an optimistic local write: the record is
// upserted into the mirror immediately so the author sees their own status
// without waiting for the feed round trip. If the write loses a race the
// feed will re-supply the same state.
func (r *Router) handleCreateStatus(w http.ResponseWriter, req *http.Request) {
	var body struct {
		AuthorDID string `json:"authorDid"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	did, err := syntax.ParseDID(body.AuthorDID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid did"})
		return
	}

	now := mirror.FormatTime(r.clock.Now())
	wire := lexicon.Status{Type: lexicon.TypeStatus, Status: body.Status, CreatedAt: now}
	if err := wire.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec := mirror.StatusRecord{
		URI:       "at://" + did.String() + "/" + mirror.CollectionStatus + "/" + r.keys.New(),
		AuthorDID: did.String(),
		Status:    body.Status,
		CreatedAt: now,
		IndexedAt: now,
	}
	if err := r.store.UpsertStatus(req.Context(), rec); err != nil {
		r.logger.Error("optimistic status write", "did", did.String(), "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, statusView{
		URI:       rec.URI,
		AuthorDID: rec.AuthorDID,
		Handle:    r.resolver.ResolveHandle(req.Context(), rec.AuthorDID),
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		IndexedAt: rec.IndexedAt,
	})
}

func listLimit(req *http.Request) int {
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			return v
		}
	}
	return defaultListLimit
}
