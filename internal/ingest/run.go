package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/newscurator/internal/cache"
	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

// run holds the state one scan owns: the fetch cache and the page session.
// finish must be deferred right after begin so cleanup happens exactly once,
// whether the scan returns normally, fails or panics.
type run struct {
	in      *Ingestor
	cache   *cache.FetchCache
	session PageSession
}

func (in *Ingestor) begin() *run {
	c := cache.New(in.cachePath, in.cacheTTL)
	c.SetClock(in.now)
	if err := c.Load(); err != nil {
		logger.Warn("starting with an empty fetch cache", "path", in.cachePath, "error", err)
	}
	return &run{in: in, cache: c}
}

func (r *run) renderer() PageSession {
	if r.session == nil {
		r.session = r.in.sessions()
	}
	return r.session
}

func (r *run) finish() {
	if err := r.cache.Save(); err != nil {
		logger.Error("failed to save fetch cache", "path", r.in.cachePath, "error", err)
	}
	if r.session != nil {
		if st, ok := r.session.(interface{ GetStats() map[string]interface{} }); ok {
			logger.Debug("page session stats", "stats", st.GetStats())
		}
		if err := r.session.Close(); err != nil {
			logger.Warn("failed to close page session", "error", err)
		}
		r.session = nil
	}
}

// process fetches one source and stores its new articles. It never returns
// an error; failures land in the ScanResult.
func (r *run) process(ctx context.Context, src config.Source, category news.Category) news.ScanResult {
	res := news.ScanResult{SourceName: src.Name, Category: category}

	articles, err := r.articles(ctx, src, category)
	if err != nil {
		logger.Error("source failed", "source", src.Name, "category", category, "error", err)
		res.SetError(err)
		r.in.metrics.RecordSource(true, 0, 0)
		return res
	}

	inserted, duplicates, err := r.store(ctx, articles)
	res.NewArticles = inserted
	if err != nil {
		logger.Error("failed to store articles", "source", src.Name, "error", err)
		res.SetError(err)
	}
	r.in.metrics.RecordSource(err != nil, inserted, duplicates)
	logger.Debug("source processed", "source", src.Name, "found", len(articles), "new", inserted, "duplicates", duplicates)
	return res
}

// articles returns the normalized articles of a source. Feeds are read on
// every scan; scraped listings go through the fetch cache.
func (r *run) articles(ctx context.Context, src config.Source, category news.Category) ([]news.Article, error) {
	now := r.in.now()

	if src.IsFeed() {
		raw, err := r.in.feeds.Read(ctx, src)
		if err != nil {
			return nil, err
		}
		return normalizeAll(raw, category, now), nil
	}

	if cached, ok := r.cache.Get(src.URL); ok {
		r.in.metrics.RecordCache(true)
		logger.Debug("using cached listing", "source", src.Name, "url", src.URL, "articles", len(cached))
		return cached, nil
	}
	r.in.metrics.RecordCache(false)

	raw, err := r.in.registry.Scrape(ctx, r.renderer(), src)
	if err != nil {
		return nil, err
	}
	articles := normalizeAll(raw, category, now)
	r.cache.Put(src.URL, articles)
	return articles, nil
}

// store inserts the articles whose URL is not stored yet.
func (r *run) store(ctx context.Context, articles []news.Article) (inserted, duplicates int, err error) {
	for _, a := range articles {
		existing, err := r.in.store.FindByURL(ctx, a.URL)
		if err != nil {
			return inserted, duplicates, fmt.Errorf("failed to look up %s: %w", a.URL, err)
		}
		if existing != nil {
			duplicates++
			continue
		}
		if _, err := r.in.store.Insert(ctx, a); err != nil {
			return inserted, duplicates, fmt.Errorf("failed to insert %s: %w", a.URL, err)
		}
		inserted++
	}
	return inserted, duplicates, nil
}

func normalizeAll(raw []news.RawArticle, category news.Category, now time.Time) []news.Article {
	out := make([]news.Article, 0, len(raw))
	for _, ra := range raw {
		if a, ok := news.Normalize(ra, category, now); ok {
			out = append(out, a)
		}
	}
	return out
}
