package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/newscurator/internal/news"
)

// MemoryStore keeps articles in process memory. It backs tests and runs
// without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	byURL       map[string]news.Article
	order       []string
	lastRefresh time.Time
}

var _ ArticleStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byURL: make(map[string]news.Article)}
}

func (m *MemoryStore) FindByURL(ctx context.Context, url string) (*news.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStore) Insert(ctx context.Context, a news.Article) (news.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byURL[a.URL]; ok {
		return existing, nil
	}
	if a.ID == "" {
		a.ID = news.ArticleID(a.URL)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.byURL[a.URL] = a
	m.order = append(m.order, a.URL)
	return a, nil
}

func (m *MemoryStore) ListByCategory(ctx context.Context, category news.Category, limit int) ([]news.Article, error) {
	m.mu.RLock()
	var out []news.Article
	for _, u := range m.order {
		if a := m.byURL[u]; a.Category == category {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) LastRefresh(ctx context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRefresh, !m.lastRefresh.IsZero(), nil
}

func (m *MemoryStore) SetLastRefresh(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRefresh = t
	return nil
}

// Len counts stored articles.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byURL)
}
