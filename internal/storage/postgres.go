package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

const (
	articlesTable = "news_items"
	metadataTable = "app_metadata"
)

var articleColumns = []string{"id", "title", "summary", "url", "published_at", "category", "source", "created_at"}

// PostgresStore persists articles in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	psq sq.StatementBuilderType
}

var _ ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore connects, pings and bootstraps the schema.
func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := newPostgresStore(db)
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("postgres store connected")
	return store, nil
}

func newPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		psq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (ps *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS news_items (
		id VARCHAR(40) PRIMARY KEY,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		url TEXT UNIQUE NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		category VARCHAR(32) NOT NULL,
		source VARCHAR(200) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_news_items_category_published ON news_items(category, published_at DESC);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key VARCHAR(64) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	if _, err := ps.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (news.Article, error) {
	var a news.Article
	var category string
	err := row.Scan(&a.ID, &a.Title, &a.Summary, &a.URL, &a.PublishedAt, &category, &a.Source, &a.CreatedAt)
	a.Category = news.Category(category)
	return a, err
}

func (ps *PostgresStore) findByURLQuery(url string) (string, []interface{}, error) {
	return ps.psq.Select(articleColumns...).
		From(articlesTable).
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
}

func (ps *PostgresStore) insertQuery(a news.Article) (string, []interface{}, error) {
	return ps.psq.Insert(articlesTable).
		Columns(articleColumns...).
		Values(a.ID, a.Title, a.Summary, a.URL, a.PublishedAt, string(a.Category), a.Source, a.CreatedAt).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING " + strings.Join(articleColumns, ", ")).
		ToSql()
}

func (ps *PostgresStore) listQuery(category news.Category, limit int) (string, []interface{}, error) {
	q := ps.psq.Select(articleColumns...).
		From(articlesTable).
		Where(sq.Eq{"category": string(category)}).
		OrderBy("published_at DESC", "created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q.ToSql()
}

func (ps *PostgresStore) FindByURL(ctx context.Context, url string) (*news.Article, error) {
	query, args, err := ps.findByURLQuery(url)
	if err != nil {
		return nil, err
	}

	a, err := scanArticle(ps.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	return &a, nil
}

func (ps *PostgresStore) Insert(ctx context.Context, a news.Article) (news.Article, error) {
	if a.ID == "" {
		a.ID = news.ArticleID(a.URL)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	query, args, err := ps.insertQuery(a)
	if err != nil {
		return news.Article{}, err
	}

	stored, err := scanArticle(ps.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		// conflict on url: someone stored it first
		existing, ferr := ps.FindByURL(ctx, a.URL)
		if ferr != nil {
			return news.Article{}, ferr
		}
		if existing == nil {
			return news.Article{}, fmt.Errorf("article %s vanished after conflict", a.URL)
		}
		return *existing, nil
	}
	if err != nil {
		return news.Article{}, fmt.Errorf("failed to insert article: %w", err)
	}
	return stored, nil
}

func (ps *PostgresStore) ListByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error) {
	query, args, err := ps.listQuery(category, limit)
	if err != nil {
		return nil, err
	}

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var items []news.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			logger.Warn("error scanning article row", "error", err)
			continue
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (ps *PostgresStore) LastRefresh(ctx context.Context) (time.Time, bool, error) {
	query, args, err := ps.psq.Select("value").
		From(metadataTable).
		Where(sq.Eq{"key": lastRefreshKey}).
		ToSql()
	if err != nil {
		return time.Time{}, false, err
	}

	var value string
	err = ps.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last refresh: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid last refresh value %q: %w", value, err)
	}
	return t, true, nil
}

func (ps *PostgresStore) SetLastRefresh(ctx context.Context, t time.Time) error {
	query, args, err := ps.psq.Insert(metadataTable).
		Columns("key", "value", "updated_at").
		Values(lastRefreshKey, t.UTC().Format(time.RFC3339Nano), sq.Expr("NOW()")).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := ps.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to store last refresh: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
