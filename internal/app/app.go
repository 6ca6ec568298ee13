// Package app wires configuration into the running service: store, identity
// resolver, feed consumer, sweeper, and HTTP API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"skymirror/internal/config"
	"skymirror/internal/database"
	"skymirror/internal/feed"
	"skymirror/internal/httpapi"
	"skymirror/internal/identity"
	"skymirror/internal/mirror"
)

// identityTimeout bounds each outbound identity-network call. A timed-out
// lookup is isolated like any other per-item failure.
const identityTimeout = 10 * time.Second

// App holds the wired components. The caller must call Close when done.
type App struct {
	cfg      *config.Config
	store    *database.SQLiteStore
	resolver *identity.Resolver
	ingester *mirror.Ingester
	sweeper  *mirror.Sweeper
	cursor   *feed.Cursor
	consumer *feed.Consumer
	handler  http.Handler
	logger   mirror.Logger
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config. The database
// schema must already be migrated; use OpenStore plus Migrate for that.
func NewApp(cfg *config.Config) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := OpenStore(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	clock := mirror.RealClock{}
	httpClient := &http.Client{Timeout: identityTimeout}

	cache := identity.NewDIDCache(identity.DefaultPositiveTTL, identity.DefaultNegativeTTL, clock)
	dir := identity.NewCachedDirectory(identity.NewHTTPDirectory(cfg.Identity.PLCHost, httpClient), cache)

	var profiles identity.ProfileSource
	if cfg.Identity.AppviewHost != "" {
		profiles = identity.NewXRPCClient(cfg.Identity.AppviewHost, cfg.Identity.AppviewToken, httpClient)
	}
	resolver := identity.NewResolver(dir, profiles, logger, cfg.Identity.Concurrency)

	ingester := mirror.NewIngester(store, logger, clock)
	sweeper := mirror.NewSweeper(store, logger, clock)

	cursor := feed.NewCursor(cfg.Feed.CursorFile)
	watched := []string{mirror.CollectionStatus, mirror.CollectionMovie}
	consumer := feed.NewConsumer(cfg.Feed.URL, watched, ingester, cursor, logger)

	handler := httpapi.NewRouter(store, resolver, logger, clock, mirror.UUIDKeyGenerator{})

	return &App{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		ingester: ingester,
		sweeper:  sweeper,
		cursor:   cursor,
		consumer: consumer,
		handler:  handler,
		logger:   logger,
		logFile:  logFile,
	}, nil
}

// OpenStore opens the SQLite store for cfg without checking migrations.
func OpenStore(cfg *config.Config) (*database.SQLiteStore, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := database.NewSQLiteStore(filepath.Join(cfg.DataDir, "skymirror.db"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

// Run consumes the feed, serves the HTTP API, and sweeps sessions on the
// configured interval until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{Addr: a.cfg.HTTP.Addr, Handler: a.handler}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http api listening", "addr", a.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go a.consumer.Run(ctx)

	interval := time.Duration(a.cfg.Sweep.IntervalMinutes) * time.Minute
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.sweeper.Sweep(ctx)
				}
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.logger.Error("http server failed", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("shutting down http server", "err", err)
	}

	if err := a.cursor.Save(); err != nil {
		a.logger.Warn("saving feed cursor", "err", err)
	}
	return runErr
}

// Sweep runs one session sweep.
func (a *App) Sweep(ctx context.Context) {
	a.sweeper.Sweep(ctx)
}

// ResolveIdentity returns the handle and display name for a DID.
func (a *App) ResolveIdentity(ctx context.Context, did string) (handle, displayName string) {
	return a.resolver.ResolveHandle(ctx, did), a.resolver.ResolveDisplayName(ctx, did)
}

// Close releases the store and log file.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}
