package curate

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
	"github.com/deusflow/newscurator/internal/storage"
)

// Per-category caps used by All.
const (
	TechNewsLimit     = 15
	ResearchNewsLimit = 12
	BusinessNewsLimit = 12
)

// candidateFactor is how many stored articles are read per curated slot.
const candidateFactor = 3

// CatalogLoader returns the current source catalog.
type CatalogLoader func() (*config.Catalog, error)

// Reader is the read path: it lists recent articles from the store and
// curates them against the catalog's source order.
type Reader struct {
	store   storage.ArticleStore
	catalog CatalogLoader
	now     func() time.Time
}

func NewReader(store storage.ArticleStore, catalog CatalogLoader) *Reader {
	return &Reader{store: store, catalog: catalog, now: time.Now}
}

// SetClock replaces the time source.
func (r *Reader) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Reader) ByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error) {
	if limit <= 0 {
		return []news.Article{}, nil
	}

	candidates, err := r.store.ListByCategory(ctx, category, candidateFactor*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s articles: %w", category, err)
	}

	// Without a catalog every source ranks as unknown.
	var sources []string
	if cat, err := r.catalog(); err != nil {
		logger.Warn("failed to load source catalog for curation", "category", category, "error", err)
	} else {
		sources = sourceNames(cat.Sources(category))
	}

	return Curate(candidates, sources, limit, r.now()), nil
}

// All curates each category with its fixed cap.
func (r *Reader) All(ctx context.Context) (*news.AllNews, error) {
	tech, err := r.ByCategory(ctx, news.TechProduct, TechNewsLimit)
	if err != nil {
		return nil, err
	}
	research, err := r.ByCategory(ctx, news.ResearchScience, ResearchNewsLimit)
	if err != nil {
		return nil, err
	}
	business, err := r.ByCategory(ctx, news.BusinessSociety, BusinessNewsLimit)
	if err != nil {
		return nil, err
	}
	return &news.AllNews{TechNews: tech, ResearchNews: research, BusinessNews: business}, nil
}

func sourceNames(sources []config.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return names
}
