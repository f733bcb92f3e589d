package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ScansCompleted     int64
	SourcesProcessed   int64
	SourcesFailed      int64
	ArticlesInserted   int64
	DuplicatesFiltered int64
	CacheHits          int64
	CacheMisses        int64

	// Timings
	LastScanDuration    time.Duration
	AverageScanDuration time.Duration
	TotalScanDuration   time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) RecordSource(failed bool, inserted, duplicates int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SourcesProcessed++
	if failed {
		m.SourcesFailed++
	}
	m.ArticlesInserted += int64(inserted)
	m.DuplicatesFiltered += int64(duplicates)
}

func (m *Metrics) RecordCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hit {
		m.CacheHits++
	} else {
		m.CacheMisses++
	}
}

// RecordScan marks a finished full scan. A scan where every source failed
// flips the health flag.
func (m *Metrics) RecordScan(duration time.Duration, processed, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ScansCompleted++
	m.LastScanDuration = duration
	m.TotalScanDuration += duration
	m.AverageScanDuration = m.TotalScanDuration / time.Duration(m.ScansCompleted)
	m.LastRunTime = time.Now()
	m.IsHealthy = processed == 0 || failed < processed
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

// Healthy reports the current health flag.
func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"scans_completed":          m.ScansCompleted,
		"sources_processed":        m.SourcesProcessed,
		"sources_failed":           m.SourcesFailed,
		"articles_inserted":        m.ArticlesInserted,
		"duplicates_filtered":      m.DuplicatesFiltered,
		"cache_hits":               m.CacheHits,
		"cache_misses":             m.CacheMisses,
		"last_scan_duration_ms":    m.LastScanDuration.Milliseconds(),
		"average_scan_duration_ms": m.AverageScanDuration.Milliseconds(),
		"last_run_time":            m.LastRunTime.Format(time.RFC3339),
		"last_error_time":          m.LastErrorTime.Format(time.RFC3339),
		"last_error":               m.LastError,
		"is_healthy":               m.IsHealthy,
	}
}
