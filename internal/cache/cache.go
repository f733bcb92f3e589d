package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deusflow/newscurator/internal/news"
)

// DefaultTTL is how long a scraped listing stays reusable.
const DefaultTTL = time.Hour

// Entry is one cached listing scrape. Timestamp is unix milliseconds.
type Entry struct {
	Articles  []news.Article `json:"articles"`
	Timestamp int64          `json:"timestamp"`
}

func (e Entry) writtenAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// FetchCache maps a source listing URL to the articles scraped from it.
// Expiry is checked on read; nothing is evicted in the background.
type FetchCache struct {
	mu      sync.RWMutex
	path    string
	ttl     time.Duration
	entries map[string]Entry
	now     func() time.Time
}

func New(path string, ttl time.Duration) *FetchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FetchCache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (c *FetchCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached articles for url if the entry is younger than the TTL.
func (c *FetchCache) Get(url string) ([]news.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.writtenAt()) > c.ttl {
		return nil, false
	}
	return e.Articles, true
}

func (c *FetchCache) Put(url string, articles []news.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = Entry{
		Articles:  articles,
		Timestamp: c.now().UnixMilli(),
	}
}

// Len counts stored entries, expired ones included.
func (c *FetchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Load replaces the in-memory state with the file contents. A missing file
// yields an empty cache and no error; an unreadable or corrupt file yields
// an empty cache and an error the caller should only log.
func (c *FetchCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}
	if entries != nil {
		c.entries = entries
	}
	return nil
}

// Save writes the whole cache to a temporary file and renames it over the
// cache path.
func (c *FetchCache) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
