package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
	"github.com/deusflow/newscurator/internal/retry"
)

// MaxItems bounds how many entries are read from the top of a feed.
const MaxItems = 15

const userAgent = "Mozilla/5.0 (compatible; newscurator/1.0; +https://github.com/deusflow/newscurator)"

// Reader fetches feeds and turns their entries into raw articles.
type Reader struct {
	parser *gofeed.Parser
	retry  retry.RetryConfig
}

func NewReader(timeout time.Duration, rc retry.RetryConfig) *Reader {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = userAgent
	return &Reader{parser: parser, retry: rc}
}

// Read downloads src.Feed and returns its accepted entries.
func (r *Reader) Read(ctx context.Context, src config.Source) ([]news.RawArticle, error) {
	if !src.IsFeed() {
		return nil, fmt.Errorf("source %q has no feed", src.Name)
	}

	var feed *gofeed.Feed
	err := retry.WithRetry(ctx, r.retry, func() error {
		var err error
		feed, err = r.parser.ParseURLWithContext(src.Feed, ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", src.Feed, err)
	}

	articles := ItemsToArticles(feed.Items, src)
	logger.Debug("feed parsed", "source", src.Name, "items", len(feed.Items), "accepted", len(articles))
	return articles, nil
}

// ItemsToArticles applies the item cap, the required-field check and the
// category filter.
func ItemsToArticles(items []*gofeed.Item, src config.Source) []news.RawArticle {
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}

	var out []news.RawArticle
	for _, item := range items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		published := publishedAt(item)
		if title == "" || link == "" || (published == nil && strings.TrimSpace(item.Published) == "") {
			continue
		}
		if src.CategoryFilter != "" && !MatchesFilter(TagsFromItem(item), src.CategoryFilter) {
			continue
		}

		out = append(out, news.RawArticle{
			Title:          title,
			URL:            link,
			PublishedAtRaw: item.Published,
			PublishedAt:    published,
			SummaryRaw:     summaryOf(item),
			SourceName:     src.Name,
		})
	}
	return out
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func summaryOf(item *gofeed.Item) string {
	if s := stripHTML(item.Description); s != "" {
		return s
	}
	if s := stripHTML(item.Content); s != "" {
		return s
	}
	return item.Title
}

func stripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return news.CleanText(doc.Text())
}
