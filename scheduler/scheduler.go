// Package scheduler executes independent stage invocations under per-class
// concurrency bounds with retry and jittered exponential backoff.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"video-factory/stage"
)

// Task is one idempotent stage invocation
type Task struct {
	Name    string
	Class   string // concurrency class, e.g. "image-generation", "tts"
	Timeout time.Duration
	Do      func(ctx context.Context) error
}

// Policy bounds retries for transient failures
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay randomized away, 0..1
}

// DefaultPolicy mirrors the retry envelope the stage adapters historically
// used inline: 3 attempts, 2s base, 30s cap.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Jitter: 0.2}
}

// Scheduler bounds in-flight tasks per concurrency class
type Scheduler struct {
	mu           sync.Mutex
	sems         map[string]chan struct{}
	defaultLimit int
	policy       Policy
}

// New builds a scheduler with the given per-class limits. Classes not listed
// fall back to defaultLimit.
func New(limits map[string]int, defaultLimit int, policy Policy) *Scheduler {
	if defaultLimit <= 0 {
		defaultLimit = 1
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	sems := make(map[string]chan struct{}, len(limits))
	for class, n := range limits {
		if n <= 0 {
			n = 1
		}
		sems[class] = make(chan struct{}, n)
	}
	return &Scheduler{sems: sems, defaultLimit: defaultLimit, policy: policy}
}

func (s *Scheduler) sem(class string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sem, ok := s.sems[class]; ok {
		return sem
	}
	sem := make(chan struct{}, s.defaultLimit)
	s.sems[class] = sem
	return sem
}

// Submit runs one task to completion under its class bound and retry policy.
// Cancellation of ctx stops new submissions and further attempts; an attempt
// already in flight drains under its own timeout rather than being cut off
// mid external call.
func (s *Scheduler) Submit(ctx context.Context, t Task) error {
	sem := s.sem(t.Class)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("task %s cancelled before start: %w", t.Name, ctx.Err())
	}
	defer func() { <-sem }()

	id := uuid.NewString()[:8]
	var err error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := s.backoff(attempt - 1)
			log.Printf("[scheduler] %s (%s) attempt %d/%d in %s", t.Name, id, attempt, s.policy.MaxAttempts, delay.Round(time.Millisecond))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("task %s cancelled after attempt %d: %w", t.Name, attempt-1, err)
			}
		}
		if ctx.Err() != nil {
			return fmt.Errorf("task %s cancelled: %w", t.Name, ctx.Err())
		}

		err = s.runAttempt(ctx, t)
		if err == nil {
			return nil
		}
		if !stage.IsTransient(err) {
			log.Printf("[scheduler] %s (%s) failed terminally: %v", t.Name, id, err)
			return err
		}
		log.Printf("[scheduler] %s (%s) transient failure: %v", t.Name, id, err)
	}
	return fmt.Errorf("task %s exhausted %d attempts: %w", t.Name, s.policy.MaxAttempts, err)
}

// runAttempt executes one attempt. The attempt context detaches from run
// cancellation so an in-flight external call drains instead of being cut off;
// the per-task timeout still bounds it.
func (s *Scheduler) runAttempt(ctx context.Context, t Task) error {
	attemptCtx := context.WithoutCancel(ctx)
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, t.Timeout)
		defer cancel()
	}
	return t.Do(attemptCtx)
}

// SubmitAll runs a batch concurrently and returns one result per task, index
// aligned with the input regardless of completion order.
func (s *Scheduler) SubmitAll(ctx context.Context, tasks []Task) []error {
	results := make([]error, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			results[i] = s.Submit(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scheduler) backoff(retries int) time.Duration {
	delay := s.policy.BaseDelay << (retries - 1)
	if delay > s.policy.MaxDelay || delay <= 0 {
		delay = s.policy.MaxDelay
	}
	if s.policy.Jitter > 0 {
		spread := float64(delay) * s.policy.Jitter
		delay = time.Duration(float64(delay) - spread/2 + rand.Float64()*spread)
	}
	return delay
}
