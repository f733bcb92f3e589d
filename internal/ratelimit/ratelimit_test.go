package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsSequentiallyWithDelay(t *testing.T) {
	delay := 30 * time.Millisecond
	q := NewQueue(delay)
	defer q.Close()

	var (
		mu     sync.Mutex
		starts []time.Time
		active int
		maxAct int
	)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxAct {
					maxAct = active
				}
				starts = append(starts, time.Now())
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxAct != 1 {
		t.Fatalf("jobs overlapped: max concurrency %d", maxAct)
	}
	if len(starts) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		// allow a little scheduler slack
		if gap := starts[i].Sub(starts[i-1]); gap < delay-5*time.Millisecond {
			t.Fatalf("gap %s between jobs shorter than delay %s", gap, delay)
		}
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	q := NewQueue(time.Millisecond)
	defer q.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := q.Do(context.Background(), func(ctx context.Context) error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("do: %v", err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("unexpected order %v", order)
		}
	}
}

func TestQueueIsolatesFailures(t *testing.T) {
	q := NewQueue(time.Millisecond)
	defer q.Close()

	boom := errors.New("boom")
	if err := q.Do(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := q.Do(context.Background(), func(ctx context.Context) error { panic("bad page") }); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	ran := false
	if err := q.Do(context.Background(), func(ctx context.Context) error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("queue should keep working after failures: %v", err)
	}

	stats := q.GetStats()
	if stats["failed"] != 2 || stats["processed"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestQueueSkipsCancelledJobs(t *testing.T) {
	q := NewQueue(time.Millisecond)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := q.Do(ctx, func(ctx context.Context) error { ran = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Fatalf("cancelled job must not run")
	}
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(time.Millisecond)
	q.Close()
	q.Close()

	err := q.Do(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
