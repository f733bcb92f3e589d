package scraper

import (
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newscurator/internal/news"
)

// Selectors holds candidate CSS selectors per field, most specific first.
type Selectors struct {
	Container []string
	Title     []string
	Link      []string
	Date      []string
	Summary   []string
}

// ExtractFunc pulls raw articles out of a rendered listing page.
type ExtractFunc func(doc *goquery.Document, base *url.URL, site SiteConfig) []news.RawArticle

// SiteConfig is one entry of the strategy table.
type SiteConfig struct {
	Name string
	// Match is a substring of the source URL selecting this entry.
	Match     string
	Selectors Selectors
	// LinkBase, when set, replaces the page URL for resolving relative links.
	LinkBase string
	// MaxArticles caps results; MaxContainers caps how many containers of
	// one selector are inspected (defaults to MaxArticles).
	MaxArticles   int
	MaxContainers int
	Settle        time.Duration
	Repair        *RepairConfig
	// Extract overrides selector-driven extraction.
	Extract ExtractFunc
}

func (s SiteConfig) extract(doc *goquery.Document, base *url.URL) []news.RawArticle {
	if s.Extract != nil {
		return s.Extract(doc, base, s)
	}
	return ExtractWithSelectors(doc, base, s)
}

func (s SiteConfig) maxArticles() int {
	if s.MaxArticles > 0 {
		return s.MaxArticles
	}
	return 10
}

func (s SiteConfig) maxContainers() int {
	if s.MaxContainers > 0 {
		return s.MaxContainers
	}
	return s.maxArticles()
}

var defaultFields = Selectors{
	Title:   []string{"h2", "h3", ".title"},
	Link:    []string{"a"},
	Date:    []string{"time", ".date", ".published"},
	Summary: []string{"p", ".excerpt"},
}

// DefaultSites is the built-in strategy table, checked in order.
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{
			Name:  "openai",
			Match: "openai.com",
			Selectors: Selectors{
				Container: []string{".post-preview", "article", ".blog-post"},
				Title:     defaultFields.Title,
				Link:      defaultFields.Link,
				Date:      defaultFields.Date,
				Summary:   defaultFields.Summary,
			},
			LinkBase:    "https://openai.com",
			MaxArticles: 10,
		},
		{
			Name:  "anthropic",
			Match: "anthropic.com",
			Selectors: Selectors{
				Container: []string{`[data-testid*="news"]`, `[data-testid*="card"]`, ".news-card", "article", ".card", `[class*="news"]`},
				Title:     []string{"h3", "h2", "h4", ".title"},
				Link:      []string{"a"},
				Date:      []string{"time, .date, .published, [datetime]"},
				Summary:   []string{"p, .excerpt, .description, .summary"},
			},
			LinkBase:      "https://www.anthropic.com",
			MaxArticles:   10,
			MaxContainers: 15,
			Settle:        3 * time.Second,
			Repair: &RepairConfig{
				SiteSuffix:   "Anthropic",
				Placeholders: []string{"News", "Newsroom", "No results found."},
				MinTitleLen:  5,
			},
			Extract: ExtractLinkCards,
		},
		{
			Name:  "deepmind",
			Match: "deepmind",
			Selectors: Selectors{
				Container: []string{"article", ".blog-card", ".post"},
				Title:     []string{"h2", "h3", "h1"},
				Link:      []string{"a"},
				Date:      []string{"time", ".date"},
				Summary:   defaultFields.Summary,
			},
			LinkBase:    "https://deepmind.google",
			MaxArticles: 10,
		},
		{
			Name:  "hbr",
			Match: "hbr.org",
			Selectors: Selectors{
				Container: []string{".stream-item", ".stream-article", ".article-item"},
				Title:     defaultFields.Title,
				Link:      []string{"a"},
				Date:      []string{".date-published", "time"},
				Summary:   defaultFields.Summary,
			},
			MaxArticles: 10,
		},
		{
			Name:  "mckinsey",
			Match: "mckinsey.com",
			Selectors: Selectors{
				Container: []string{".insights-card", ".insight-card", ".content-card"},
				Title:     defaultFields.Title,
				Link:      []string{"a"},
				Date:      []string{".date", "time"},
				Summary:   defaultFields.Summary,
			},
			MaxArticles: 10,
		},
	}
}

// GenericSite is the fallback for sources without a table entry.
func GenericSite() SiteConfig {
	return SiteConfig{
		Name: "generic",
		Selectors: Selectors{
			Container: []string{"article", ".post", ".blog-post", ".news-item", ".entry", ".card", ".item", `[class*="article"]`, `[class*="post"]`},
			Title:     []string{`h1, h2, h3, h4, .title, [class*="title"]`},
			Link:      []string{"a"},
			Date:      []string{"time, .date, .published, [datetime]"},
			Summary:   []string{"p, .excerpt, .summary, .description"},
		},
		MaxArticles:   10,
		MaxContainers: 15,
	}
}
