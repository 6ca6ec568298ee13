// Package httpapi serves the read path over the local mirror, annotating
// results with resolved handles. Results are best-effort: a failed handle
// resolution degrades to the DID, never to an error response.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skymirror/internal/identity"
	"skymirror/internal/mirror"
)

type Router struct {
	store    mirror.Store
	resolver *identity.Resolver
	logger   mirror.Logger
	clock    mirror.Clock
	keys     mirror.KeyGenerator
}

func NewRouter(store mirror.Store, resolver *identity.Resolver, logger mirror.Logger, clock mirror.Clock, keys mirror.KeyGenerator) http.Handler {
	r := &Router{store: store, resolver: resolver, logger: logger, clock: clock, keys: keys}
	mux := chi.NewRouter()

	mux.Get("/health", r.handleHealth)
	mux.Get("/api/statuses", r.handleListStatuses)
	mux.Get("/api/statuses/{did}", r.handleLatestStatus)
	mux.Get("/api/movies", r.handleListMovies)
	mux.Post("/api/status", r.handleCreateStatus)

	return mux
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
