// Package storage holds the article persistence contract and its
// implementations. URL is the dedup key everywhere.
package storage

import (
	"context"
	"time"

	"github.com/deusflow/newscurator/internal/news"
)

// ArticleStore is the persistence the ingestion and curation code depends on.
type ArticleStore interface {
	// FindByURL returns nil, nil when no article has the URL.
	FindByURL(ctx context.Context, url string) (*news.Article, error)
	// Insert stores a new article. Inserting a known URL returns the stored
	// record unchanged.
	Insert(ctx context.Context, a news.Article) (news.Article, error)
	// ListByCategory returns the newest articles first.
	ListByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error)

	LastRefresh(ctx context.Context) (time.Time, bool, error)
	SetLastRefresh(ctx context.Context, t time.Time) error
}

const lastRefreshKey = "last_news_refresh"
