package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// ListCache caches ListByCategory results in Redis. Every insert bumps a
// per-category generation number so stale lists are never served. Redis
// failures fall through to the wrapped store.
type ListCache struct {
	next ArticleStore
	rdb  *redis.Client
	ttl  time.Duration
}

var _ ArticleStore = (*ListCache)(nil)

func NewListCache(next ArticleStore, rdb *redis.Client, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ListCache{next: next, rdb: rdb, ttl: ttl}
}

func generationKey(category news.Category) string {
	return fmt.Sprintf("news:gen:%s", category)
}

func listKey(category news.Category, generation int64, limit int) string {
	return fmt.Sprintf("news:list:%s:%d:%d", category, generation, limit)
}

func (c *ListCache) FindByURL(ctx context.Context, url string) (*news.Article, error) {
	return c.next.FindByURL(ctx, url)
}

func (c *ListCache) Insert(ctx context.Context, a news.Article) (news.Article, error) {
	stored, err := c.next.Insert(ctx, a)
	if err != nil {
		return stored, err
	}
	if err := c.rdb.Incr(ctx, generationKey(stored.Category)).Err(); err != nil {
		logger.Warn("failed to bump list cache generation", "category", stored.Category, "error", err)
	}
	return stored, nil
}

func (c *ListCache) ListByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error) {
	gen, err := c.rdb.Get(ctx, generationKey(category)).Int64()
	if errors.Is(err, redis.Nil) {
		gen, err = 0, nil
	}
	if err != nil {
		logger.Debug("list cache unavailable", "error", err)
		return c.next.ListByCategory(ctx, category, limit)
	}

	key := listKey(category, gen, limit)
	if bs, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached []news.Article
		if err := json.Unmarshal(bs, &cached); err == nil {
			return cached, nil
		}
	}

	items, err := c.next.ListByCategory(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(items); err == nil {
		_ = c.rdb.Set(ctx, key, bs, c.ttl).Err()
	}
	return items, nil
}

func (c *ListCache) LastRefresh(ctx context.Context) (time.Time, bool, error) {
	return c.next.LastRefresh(ctx)
}

func (c *ListCache) SetLastRefresh(ctx context.Context, t time.Time) error {
	return c.next.SetLastRefresh(ctx, t)
}

// Close closes the Redis client and the wrapped store when it is closable.
func (c *ListCache) Close() error {
	err := c.rdb.Close()
	if closer, ok := c.next.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
