package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

type countingScanner struct {
	calls    atomic.Int32
	deadline atomic.Bool
	err      error
}

func (c *countingScanner) FetchAll(ctx context.Context) (*news.CompleteScanResult, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.deadline.Store(true)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &news.CompleteScanResult{}, nil
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a schedule", &countingScanner{}, 0); err == nil {
		t.Fatalf("expected an error for an invalid schedule")
	}
}

func TestRunOnce(t *testing.T) {
	sc := &countingScanner{}
	s, err := New("0 */2 * * *", sc, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	s.RunOnce()
	if sc.calls.Load() != 1 || !sc.deadline.Load() {
		t.Fatalf("expected one bounded scan")
	}

	sc.err = errors.New("catalog missing")
	s.RunOnce()
	if sc.calls.Load() != 2 {
		t.Fatalf("a failed scan should still count as a run")
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &countingScanner{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	if s.Next().IsZero() {
		t.Fatalf("expected a next run time after start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

type panicScanner struct{}

func (panicScanner) FetchAll(ctx context.Context) (*news.CompleteScanResult, error) {
	panic("scan exploded")
}

func TestCronPanicIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Logger
	logger.Logger = logger.New(&buf, slog.LevelDebug, "json")
	defer func() { logger.Logger = prev }()

	s, err := New("@every 1h", panicScanner{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	job := s.cron.Entries()[0].WrappedJob
	job.Run()

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("cron output is not structured: %q", line)
		}
		if rec["component"] == "cron" && rec["level"] == "ERROR" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the recovered panic in the app logger, got %q", buf.String())
	}
}
