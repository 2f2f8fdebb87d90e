package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a CheckAll round when no timeout is given.
const DefaultCheckTimeout = 10 * time.Second

// Aggregator runs a named set of checkers. Names are reported in
// registration order.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithCheckTimeout bounds every CheckAll round. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAggregator returns an empty aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		timeout:  DefaultCheckTimeout,
		checkers: make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds checker under name, replacing any checker already there.
func (a *Aggregator) Register(name string, checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.checkers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// CheckerNames returns the registered names.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return run(ctx, checker), nil
}

// CheckAll runs every checker concurrently. A checker that has not returned
// when the round times out is reported unhealthy with ErrCheckTimeout.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make(map[string]Checker, len(a.checkers))
	for name, c := range a.checkers {
		checkers[name] = c
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for name, c := range checkers {
		g.Go(func() error {
			r := run(ctx, c)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// OverallStatus returns the worst status in results, or StatusHealthy when
// there are none.
func (a *Aggregator) OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		overall = max(overall, r.Status)
	}
	return overall
}

// run executes c, giving up when ctx is done. The checker goroutine is left
// to finish on its own.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		r := c.Check(ctx)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		r.Duration = time.Since(start)
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   c.Name() + " check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
