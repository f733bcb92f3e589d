package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/newscurator/internal/cache"
	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/metrics"
	"github.com/deusflow/newscurator/internal/news"
	"github.com/deusflow/newscurator/internal/scraper"
	"github.com/deusflow/newscurator/internal/storage"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const listingHTML = `<html><body>
<article><h2>Shipping the new SDK</h2><a href="/blog/sdk">read</a><time datetime="2025-03-09">March 9, 2025</time><p>What changed in the SDK release.</p></article>
<article><h2>Benchmarks revisited</h2><a href="/blog/bench">read</a><time>2025-03-08</time><p>New numbers.</p></article>
</body></html>`

type fakeFeeds struct {
	items map[string][]news.RawArticle
	fail  map[string]error
}

func (f *fakeFeeds) Read(ctx context.Context, src config.Source) ([]news.RawArticle, error) {
	if err := f.fail[src.Feed]; err != nil {
		return nil, err
	}
	return f.items[src.Feed], nil
}

type fakeSession struct {
	mu      sync.Mutex
	pages   map[string]string
	fail    map[string]error
	renders int
	closes  int
}

func (s *fakeSession) Render(ctx context.Context, req scraper.RenderRequest) (*scraper.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders++
	if err := s.fail[req.URL]; err != nil {
		return nil, err
	}
	html, ok := s.pages[req.URL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", req.URL)
	}
	return &scraper.Page{URL: req.URL, HTML: html}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func feedItem(title, link string) news.RawArticle {
	published := now.Add(-time.Hour)
	return news.RawArticle{Title: title, URL: link, PublishedAt: &published, SummaryRaw: title, SourceName: "Feed"}
}

func testCatalog() *config.Catalog {
	return &config.Catalog{Sections: []config.Section{
		{Name: "Tech & Product News", Category: news.TechProduct, Known: true, Sources: []config.Source{
			{Name: "Feed", URL: "https://feed.example", Feed: "https://feed.example/rss"},
			{Name: "Blog", URL: "https://blog.example.com"},
		}},
		{Name: "Research & Science", Category: news.ResearchScience, Known: true, Sources: []config.Source{
			{Name: "Slow Lab", URL: "https://slow.example.com"},
		}},
	}}
}

type fixture struct {
	ingestor *Ingestor
	store    *storage.MemoryStore
	feeds    *fakeFeeds
	sessions []*fakeSession
	pages    map[string]string
	fail     map[string]error
	cacheDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: storage.NewMemoryStore(),
		feeds: &fakeFeeds{items: map[string][]news.RawArticle{
			"https://feed.example/rss": {
				feedItem("Feed one", "https://feed.example/1"),
				feedItem("Feed two", "https://feed.example/2"),
			},
		}},
		pages:    map[string]string{"https://blog.example.com": listingHTML},
		fail:     map[string]error{"https://slow.example.com": context.DeadlineExceeded},
		cacheDir: t.TempDir(),
	}
	f.ingestor = New(Deps{
		Catalog: func() (*config.Catalog, error) { return testCatalog(), nil },
		Store:   f.store,
		Feeds:   f.feeds,
		Sessions: func() PageSession {
			s := &fakeSession{pages: f.pages, fail: f.fail}
			f.sessions = append(f.sessions, s)
			return s
		},
		CachePath: filepath.Join(f.cacheDir, "cache.json"),
		CacheTTL:  time.Hour,
		Metrics:   metrics.New(),
	})
	f.ingestor.SetClock(func() time.Time { return now })
	return f
}

func TestFetchAllIsolatesFailuresAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.ingestor.FetchAll(ctx)
	if err != nil {
		t.Fatalf("a failing source must not fail the scan: %v", err)
	}
	if result.ProcessedSources != 3 || len(result.Results) != 3 {
		t.Fatalf("expected 3 processed sources, got %+v", result)
	}
	if result.TotalNewArticles != 4 {
		t.Fatalf("expected 4 new articles, got %d", result.TotalNewArticles)
	}

	order := []string{"Feed", "Blog", "Slow Lab"}
	for i, r := range result.Results {
		if r.SourceName != order[i] {
			t.Fatalf("sources must be processed in catalog order, got %s at %d", r.SourceName, i)
		}
	}
	slow := result.Results[2]
	if slow.Error == nil || !strings.Contains(*slow.Error, "deadline exceeded") {
		t.Fatalf("expected a timeout error on the slow source, got %+v", slow)
	}
	if slow.Category != news.ResearchScience {
		t.Fatalf("unexpected category %s", slow.Category)
	}
	if result.Results[0].Error != nil || result.Results[1].Error != nil {
		t.Fatalf("healthy sources must not carry errors")
	}

	if _, ok, _ := f.store.LastRefresh(ctx); !ok {
		t.Fatalf("full scan should record the last refresh")
	}

	again, err := f.ingestor.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalNewArticles != 0 {
		t.Fatalf("second scan must insert nothing, got %d", again.TotalNewArticles)
	}
	if f.store.Len() != 4 {
		t.Fatalf("expected 4 stored articles, got %d", f.store.Len())
	}
}

func TestFetchAllClosesSessionOncePerScan(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ingestor.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.sessions) != 1 {
		t.Fatalf("expected one session per scan, got %d", len(f.sessions))
	}
	if f.sessions[0].closes != 1 {
		t.Fatalf("session closed %d times", f.sessions[0].closes)
	}
}

func TestFetchAllUsesFetchCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ingestor.FetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	first := f.sessions[0].renders

	if _, err := f.ingestor.FetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	// Only the failing source renders again; the blog listing is cached.
	if got := f.sessions[1].renders; got != 1 || first != 2 {
		t.Fatalf("expected 2 then 1 renders, got %d then %d", first, got)
	}

	c := cache.New(filepath.Join(f.cacheDir, "cache.json"), time.Hour)
	c.SetClock(func() time.Time { return now })
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	if cached, ok := c.Get("https://blog.example.com"); !ok || len(cached) != 2 {
		t.Fatalf("expected the blog listing on disk, got %v %v", cached, ok)
	}
}

func TestFetchAllExpiredCacheRescrapes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ingestor.FetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	f.ingestor.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
	if _, err := f.ingestor.FetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.sessions[1].renders; got != 2 {
		t.Fatalf("expired entry should be scraped again, got %d renders", got)
	}
}

func TestFetchSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.ingestor.FetchSource(ctx, "Blog")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewArticles != 2 || res.Category != news.TechProduct {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.sessions) != 1 || f.sessions[0].closes != 1 {
		t.Fatalf("single source scan must close its session")
	}

	stored, _ := f.store.FindByURL(ctx, "https://blog.example.com/blog/sdk")
	if stored == nil || stored.Source != "Blog" || stored.Title != "Shipping the new SDK" {
		t.Fatalf("unexpected stored article %+v", stored)
	}

	_, err = f.ingestor.FetchSource(ctx, "Nobody")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestFetchSourceFeedSkipsBrowser(t *testing.T) {
	f := newFixture(t)
	res, err := f.ingestor.FetchSource(context.Background(), "Feed")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewArticles != 2 {
		t.Fatalf("expected 2 feed articles, got %d", res.NewArticles)
	}
	if len(f.sessions) != 0 {
		t.Fatalf("a feed source must not open a page session")
	}
}

func TestFetchAllFeedError(t *testing.T) {
	f := newFixture(t)
	f.feeds.fail = map[string]error{"https://feed.example/rss": errors.New("bad gateway")}

	result, err := f.ingestor.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r := result.Results[0]; r.Error == nil || *r.Error != "bad gateway" {
		t.Fatalf("expected feed error, got %+v", r)
	}
	if result.Results[1].NewArticles != 2 {
		t.Fatalf("later sources must still run")
	}
}

func TestFetchAllCatalogError(t *testing.T) {
	in := New(Deps{
		Catalog:   func() (*config.Catalog, error) { return nil, errors.New("no file") },
		Store:     storage.NewMemoryStore(),
		CachePath: filepath.Join(t.TempDir(), "cache.json"),
		Metrics:   metrics.New(),
	})
	if _, err := in.FetchAll(context.Background()); err == nil {
		t.Fatalf("expected catalog error")
	}
}

func TestFetchAllCleansUpOnPanic(t *testing.T) {
	f := newFixture(t)
	f.ingestor.feeds = panicFeeds{}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected the panic to propagate")
			}
		}()
		f.ingestor.FetchAll(context.Background())
	}()

	// The Feed source panicked before the browser was needed.
	if len(f.sessions) != 0 {
		t.Fatalf("unexpected session")
	}
	// The lock was released and the next scan runs.
	f.ingestor.feeds = f.feeds
	if _, err := f.ingestor.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
}

type panicFeeds struct{}

func (panicFeeds) Read(ctx context.Context, src config.Source) ([]news.RawArticle, error) {
	panic("feed parser exploded")
}
