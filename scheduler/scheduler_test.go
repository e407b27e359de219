package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"video-factory/stage"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestSubmitTerminalFailsWithoutRetry(t *testing.T) {
	t.Parallel()
	s := New(nil, 1, fastPolicy(3))
	var attempts atomic.Int32

	err := s.Submit(context.Background(), Task{
		Name:  "doomed",
		Class: "test",
		Do: func(ctx context.Context) error {
			attempts.Add(1)
			return stage.Terminal("test", errors.New("bad request"))
		},
	})
	if err == nil {
		t.Fatal("terminal failure reported as success")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("terminal failure attempted %d times, want 1", got)
	}
}

func TestSubmitRetriesTransientToExhaustion(t *testing.T) {
	t.Parallel()
	s := New(nil, 1, fastPolicy(3))
	var attempts atomic.Int32

	err := s.Submit(context.Background(), Task{
		Name:  "flaky",
		Class: "test",
		Do: func(ctx context.Context) error {
			attempts.Add(1)
			return stage.Transient("test", errors.New("rate limited"))
		},
	})
	if err == nil {
		t.Fatal("exhausted retries reported as success")
	}
	if !strings.Contains(err.Error(), "exhausted") {
		t.Errorf("error %q does not report exhaustion", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempted %d times, want 3", got)
	}
}

func TestSubmitRecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()
	s := New(nil, 1, fastPolicy(3))
	var attempts atomic.Int32

	err := s.Submit(context.Background(), Task{
		Name:  "recovers",
		Class: "test",
		Do: func(ctx context.Context) error {
			if attempts.Add(1) == 1 {
				return stage.Transient("test", errors.New("timeout"))
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("recovered task reported failure: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempted %d times, want 2", got)
	}
}

func TestSubmitAllBoundsClassConcurrency(t *testing.T) {
	t.Parallel()
	const limit = 2
	s := New(map[string]int{"bounded": limit}, 1, fastPolicy(1))

	var inFlight, highWater atomic.Int32
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{
			Name:  fmt.Sprintf("task-%d", i),
			Class: "bounded",
			Do: func(ctx context.Context) error {
				n := inFlight.Add(1)
				for {
					hw := highWater.Load()
					if n <= hw || highWater.CompareAndSwap(hw, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			},
		}
	}

	for i, err := range s.SubmitAll(context.Background(), tasks) {
		if err != nil {
			t.Errorf("task %d failed: %v", i, err)
		}
	}
	if hw := highWater.Load(); hw > limit {
		t.Errorf("observed %d concurrent tasks, limit %d", hw, limit)
	}
}

func TestSubmitAllResultsIndexAligned(t *testing.T) {
	t.Parallel()
	s := New(map[string]int{"mixed": 4}, 1, fastPolicy(1))

	tasks := make([]Task, 6)
	for i := range tasks {
		i := i
		tasks[i] = Task{
			Name:  fmt.Sprintf("task-%d", i),
			Class: "mixed",
			Do: func(ctx context.Context) error {
				if i%2 == 1 {
					return stage.Terminal("test", fmt.Errorf("failure-%d", i))
				}
				return nil
			},
		}
	}

	results := s.SubmitAll(context.Background(), tasks)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results for %d tasks", len(results), len(tasks))
	}
	for i, err := range results {
		if i%2 == 0 {
			if err != nil {
				t.Errorf("task %d: unexpected failure %v", i, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), fmt.Sprintf("failure-%d", i)) {
			t.Errorf("task %d: result %v not aligned with its task", i, err)
		}
	}
}

func TestSubmitHonorsCancellation(t *testing.T) {
	t.Parallel()
	s := New(nil, 1, fastPolicy(3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := s.Submit(ctx, Task{
		Name:  "cancelled",
		Class: "test",
		Do: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})
	if err == nil {
		t.Fatal("cancelled submission reported success")
	}
	if ran {
		t.Error("task ran despite cancelled context")
	}
}

func TestInFlightAttemptSurvivesCancellation(t *testing.T) {
	t.Parallel()
	s := New(nil, 1, fastPolicy(1))
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Submit(ctx, Task{
		Name:  "draining",
		Class: "test",
		Do: func(ctx context.Context) error {
			cancel()
			// The attempt context detaches from run cancellation.
			if ctx.Err() != nil {
				return fmt.Errorf("attempt context cancelled mid flight: %w", ctx.Err())
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("in-flight attempt was cut off: %v", err)
	}
}
