// Package ingest runs scans: it reads every configured source, normalizes
// what it finds and stores articles whose URL is not yet known.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/metrics"
	"github.com/deusflow/newscurator/internal/news"
	"github.com/deusflow/newscurator/internal/scraper"
	"github.com/deusflow/newscurator/internal/storage"
)

var ErrSourceNotFound = errors.New("source not found")

// FeedReader fetches the items of an RSS or Atom source.
type FeedReader interface {
	Read(ctx context.Context, src config.Source) ([]news.RawArticle, error)
}

// PageSession renders pages for one scan and is closed when the scan ends.
type PageSession interface {
	scraper.Renderer
	Close() error
}

// SessionFactory opens the page session of a scan.
type SessionFactory func() PageSession

// CatalogLoader returns the current source catalog.
type CatalogLoader func() (*config.Catalog, error)

// Deps are the collaborators of an Ingestor.
type Deps struct {
	Catalog   CatalogLoader
	Store     storage.ArticleStore
	Feeds     FeedReader
	Sessions  SessionFactory
	Registry  *scraper.Registry
	CachePath string
	CacheTTL  time.Duration
	Metrics   *metrics.Metrics
}

// Ingestor is the source fetch orchestrator. Only one scan runs at a time;
// a second caller waits for the first to finish.
type Ingestor struct {
	mu sync.Mutex

	catalog   CatalogLoader
	store     storage.ArticleStore
	feeds     FeedReader
	sessions  SessionFactory
	registry  *scraper.Registry
	cachePath string
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(deps Deps) *Ingestor {
	if deps.Registry == nil {
		deps.Registry = scraper.NewRegistry(scraper.DefaultOptions())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}
	return &Ingestor{
		catalog:   deps.Catalog,
		store:     deps.Store,
		feeds:     deps.Feeds,
		sessions:  deps.Sessions,
		registry:  deps.Registry,
		cachePath: deps.CachePath,
		cacheTTL:  deps.CacheTTL,
		metrics:   deps.Metrics,
		now:       time.Now,
	}
}

// SetClock replaces the time source used for timestamps and cache expiry.
func (in *Ingestor) SetClock(now func() time.Time) {
	in.now = now
}

// FetchAll scans every source, category by category, in catalog order. A
// failing source is reported in its ScanResult and the scan goes on.
func (in *Ingestor) FetchAll(ctx context.Context) (*news.CompleteScanResult, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	cat, err := in.catalog()
	if err != nil {
		in.metrics.SetError(err.Error())
		return nil, fmt.Errorf("failed to load source catalog: %w", err)
	}

	result := &news.CompleteScanResult{
		Results:       []news.ScanResult{},
		ScanStartedAt: in.now(),
	}
	logger.Info("starting full scan", "sources", cat.Len())

	r := in.begin()
	defer r.finish()

	failed := 0
	for _, sec := range cat.Sections {
		for _, src := range sec.Sources {
			if err := ctx.Err(); err != nil {
				return result, fmt.Errorf("scan interrupted: %w", err)
			}
			res := r.process(ctx, src, sec.Category)
			if res.Failed() {
				failed++
			}
			result.Add(res)
		}
	}
	result.ScanCompletedAt = in.now()

	in.metrics.RecordScan(result.ScanCompletedAt.Sub(result.ScanStartedAt), result.ProcessedSources, failed)
	if err := in.store.SetLastRefresh(ctx, result.ScanCompletedAt); err != nil {
		logger.Warn("failed to record last refresh", "error", err)
	}

	logger.Info("full scan completed",
		"sources", result.ProcessedSources,
		"failed", failed,
		"new_articles", result.TotalNewArticles,
		"duration", result.ScanCompletedAt.Sub(result.ScanStartedAt))
	return result, nil
}

// FetchSource scans the first source named name. It returns
// ErrSourceNotFound when no category holds it.
func (in *Ingestor) FetchSource(ctx context.Context, name string) (*news.ScanResult, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	cat, err := in.catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load source catalog: %w", err)
	}
	src, category, ok := cat.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}

	r := in.begin()
	defer r.finish()

	res := r.process(ctx, src, category)
	logger.Info("source scan completed", "source", name, "new_articles", res.NewArticles, "failed", res.Failed())
	return &res, nil
}
