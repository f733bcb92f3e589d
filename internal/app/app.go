package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deusflow/newscurator/internal/api"
	"github.com/deusflow/newscurator/internal/browser"
	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/curate"
	"github.com/deusflow/newscurator/internal/ingest"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/metrics"
	"github.com/deusflow/newscurator/internal/retry"
	"github.com/deusflow/newscurator/internal/rss"
	"github.com/deusflow/newscurator/internal/scheduler"
	"github.com/deusflow/newscurator/internal/scraper"
	"github.com/deusflow/newscurator/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App owns the long-lived components built from a Config.
type App struct {
	Config   *config.Config
	Store    storage.ArticleStore
	Ingestor *ingest.Ingestor
	Reader   *curate.Reader
}

// New opens the store and wires the scan and read paths.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	loadCatalog := func() (*config.Catalog, error) {
		return config.LoadCatalog(cfg.SourcesConfigPath)
	}

	feeds := rss.NewReader(cfg.RequestTimeout, retry.RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		Delay:       cfg.RetryDelay,
		Backoff:     true,
	})

	browserOpts := browser.Options{
		ChromePath:     cfg.ChromePath,
		NoSandbox:      cfg.BrowserNoSandbox,
		RequestDelay:   cfg.RequestDelay,
		DefaultTimeout: cfg.NavigationTimeout,
	}

	ingestor := ingest.New(ingest.Deps{
		Catalog: loadCatalog,
		Store:   store,
		Feeds:   feeds,
		Sessions: func() ingest.PageSession {
			return browser.NewSession(browserOpts)
		},
		Registry: scraper.NewRegistry(scraper.Options{
			NavigationTimeout: cfg.NavigationTimeout,
			RepairTimeout:     cfg.RepairTimeout,
		}),
		CachePath: cfg.CacheFilePath,
		CacheTTL:  cfg.CacheTTL,
		Metrics:   metrics.Global,
	})

	return &App{
		Config:   cfg,
		Store:    store,
		Ingestor: ingestor,
		Reader:   curate.NewReader(store, loadCatalog),
	}, nil
}

// openStore picks Postgres when DATABASE_URL is set, otherwise memory, and
// puts the Redis list cache in front when REDIS_ADDR is set.
func openStore(ctx context.Context, cfg *config.Config) (storage.ArticleStore, error) {
	var store storage.ArticleStore
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = storage.NewMemoryStore()
	} else {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("connected to postgres")
		store = pg
	}

	if cfg.RedisAddr == "" {
		return store, nil
	}
	rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, list cache disabled", "addr", cfg.RedisAddr, "error", err)
		return store, nil
	}
	logger.Info("redis list cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ListCacheTTL)
	return storage.NewListCache(store, rdb, cfg.ListCacheTTL), nil
}

func (a *App) Close() error {
	if closer, ok := a.Store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Serve runs the HTTP API and the scan scheduler until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	sched, err := scheduler.New(a.Config.ScanCron, a.Ingestor, 0)
	if err != nil {
		return err
	}

	server := api.NewServer(a.Ingestor, a.Reader, a.Store, metrics.Global)
	srv := &http.Server{
		Addr:              ":" + a.Config.HTTPPort,
		Handler:           server.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", a.Config.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sched.Start()
	logger.Info("next scheduled scan", "at", sched.Next())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			sched.Stop(context.Background())
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	sched.Stop(shutdownCtx)
	return nil
}
