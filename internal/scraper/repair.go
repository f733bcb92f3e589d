package scraper

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

// RepairConfig marks which titles are navigation labels rather than
// headlines, and the site name to strip from page titles.
type RepairConfig struct {
	SiteSuffix   string
	Placeholders []string
	MinTitleLen  int
}

// IsGeneric reports whether title needs repair.
func (c RepairConfig) IsGeneric(title string) bool {
	title = news.CleanText(title)
	if utf8.RuneCountInString(title) < c.MinTitleLen {
		return true
	}
	for _, p := range c.Placeholders {
		if title == p {
			return true
		}
	}
	return false
}

var headlineSelectors = []string{"h1", ".article-title", `[class*="title"]`, `[data-testid*="title"]`}

func (c RepairConfig) suffixRe() *regexp.Regexp {
	if c.SiteSuffix == "" {
		return nil
	}
	return regexp.MustCompile(`\s*[|\\\-–]\s*` + regexp.QuoteMeta(c.SiteSuffix) + `\s*$`)
}

func (c RepairConfig) usable(title string) bool {
	return utf8.RuneCountInString(title) > c.MinTitleLen && !c.IsGeneric(title)
}

// RepairFromDocument derives a headline from an article page: a headline
// element first, then og:title, then the document title. It also returns
// og:description, which may be empty.
func RepairFromDocument(doc *goquery.Document, cfg RepairConfig) (title, description string) {
	description = news.CleanText(metaContent(doc, "og:description"))
	suffix := cfg.suffixRe()
	strip := func(s string) string {
		s = news.CleanText(s)
		if suffix != nil {
			s = strings.TrimSpace(suffix.ReplaceAllString(s, ""))
		}
		return s
	}

	extractors := []func() (string, bool){
		func() (string, bool) {
			return firstOf(headlineSelectors, func(q string) (string, bool) {
				t, ok := textOf(doc.Find(q).First())
				return t, ok && cfg.usable(t) && !strings.Contains(t, "Skip to")
			})
		},
		func() (string, bool) {
			t := strip(metaContent(doc, "og:title"))
			return t, cfg.usable(t)
		},
		func() (string, bool) {
			t := strip(doc.Find("title").First().Text())
			return t, cfg.usable(t)
		},
	}

	title, _ = firstOf(extractors, func(f func() (string, bool)) (string, bool) { return f() })
	return title, description
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return v
}

// RepairTitleIfGeneric revisits the article page when its title is a
// placeholder. Any failure leaves the article unchanged.
func RepairTitleIfGeneric(ctx context.Context, r Renderer, art news.RawArticle, cfg RepairConfig, timeout time.Duration) news.RawArticle {
	if !cfg.IsGeneric(art.Title) {
		return art
	}

	page, err := r.Render(ctx, RenderRequest{URL: art.URL, Timeout: timeout})
	if err != nil {
		logger.Warn("title repair failed", "url", art.URL, "error", err)
		return art
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		logger.Warn("title repair failed", "url", art.URL, "error", err)
		return art
	}

	title, description := RepairFromDocument(doc, cfg)
	if title != "" {
		logger.Debug("title repaired", "url", art.URL, "from", art.Title, "to", title)
		art.Title = title
	}
	if news.CleanText(art.SummaryRaw) == "" && description != "" {
		art.SummaryRaw = description
	}
	return art
}
