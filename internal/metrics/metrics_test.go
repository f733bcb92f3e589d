package metrics

import (
	"testing"
	"time"
)

func TestRecordSourceAndScan(t *testing.T) {
	m := New()
	m.RecordSource(false, 3, 2)
	m.RecordSource(true, 0, 0)
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordScan(2*time.Second, 2, 1)

	stats := m.GetStats()
	if stats["sources_processed"] != int64(2) || stats["sources_failed"] != int64(1) {
		t.Fatalf("unexpected source counters %v", stats)
	}
	if stats["articles_inserted"] != int64(3) || stats["duplicates_filtered"] != int64(2) {
		t.Fatalf("unexpected article counters %v", stats)
	}
	if stats["cache_hits"] != int64(1) || stats["cache_misses"] != int64(1) {
		t.Fatalf("unexpected cache counters %v", stats)
	}
	if !m.Healthy() {
		t.Fatalf("partial failure should stay healthy")
	}

	m.RecordScan(time.Second, 2, 2)
	if m.Healthy() {
		t.Fatalf("a scan where every source failed is unhealthy")
	}
	if m.AverageScanDuration != 1500*time.Millisecond {
		t.Fatalf("unexpected average %s", m.AverageScanDuration)
	}
}

func TestSetError(t *testing.T) {
	m := New()
	m.SetError("boom")
	if m.Healthy() || m.GetStats()["last_error"] != "boom" {
		t.Fatalf("error not recorded")
	}
}
