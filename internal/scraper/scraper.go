package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

// RenderRequest describes one page load.
type RenderRequest struct {
	URL     string
	Timeout time.Duration
	// WaitIdle waits for network activity to settle after navigation.
	WaitIdle bool
	// Settle is an extra pause after loading, for client-rendered pages.
	Settle time.Duration
}

// Page is a rendered document.
type Page struct {
	URL  string
	HTML string
}

// Renderer loads pages, typically through a shared headless browser.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*Page, error)
}

type Options struct {
	NavigationTimeout time.Duration
	RepairTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 30 * time.Second,
		RepairTimeout:     15 * time.Second,
	}
}

// Registry picks the extraction strategy for a source URL.
type Registry struct {
	sites   []SiteConfig
	generic SiteConfig
	opts    Options
}

// NewRegistry builds a registry over sites; with no sites the default table
// is used. Sites are matched in slice order.
func NewRegistry(opts Options, sites ...SiteConfig) *Registry {
	if len(sites) == 0 {
		sites = DefaultSites()
	}
	return &Registry{
		sites:   sites,
		generic: GenericSite(),
		opts:    opts,
	}
}

// Resolve returns the first site whose Match occurs in rawURL, or the
// generic strategy.
func (r *Registry) Resolve(rawURL string) SiteConfig {
	for _, s := range r.sites {
		if s.Match != "" && strings.Contains(rawURL, s.Match) {
			return s
		}
	}
	return r.generic
}

// Scrape renders the source listing page and extracts its articles. Title
// repair, when the site asks for it, runs as separate page loads after the
// listing page has been released.
func (r *Registry) Scrape(ctx context.Context, renderer Renderer, src config.Source) ([]news.RawArticle, error) {
	site := r.Resolve(src.URL)
	logger.Debug("scraping source", "source", src.Name, "strategy", site.Name, "url", src.URL)

	page, err := renderer.Render(ctx, RenderRequest{
		URL:      src.URL,
		Timeout:  r.opts.NavigationTimeout,
		WaitIdle: true,
		Settle:   site.Settle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", src.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", src.URL, err)
	}

	pageURL := page.URL
	if pageURL == "" {
		pageURL = src.URL
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	articles := site.extract(doc, base)
	for i := range articles {
		articles[i].SourceName = src.Name
	}

	if site.Repair != nil {
		for i := range articles {
			articles[i] = RepairTitleIfGeneric(ctx, renderer, articles[i], *site.Repair, r.opts.RepairTimeout)
		}
	}
	return articles, nil
}
