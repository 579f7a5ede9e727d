package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCheckTimeout is the error of a check still running when the
	// aggregator's timeout fires.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned by Check for an unknown name.
	ErrCheckerNotFound = errors.New("health: no such check")

	// ErrNoCheckers is returned by Run on an empty aggregator.
	ErrNoCheckers = errors.New("health: nothing to check")
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds the whole run. Checks still running when it fires
	// fail with ErrCheckTimeout.
	// Default: 10 seconds
	Timeout time.Duration

	// Parallel runs health checks concurrently when true.
	Parallel bool
}

// Aggregator runs a fixed list of checkers and reports their results in
// registration order.
type Aggregator struct {
	config   AggregatorConfig
	mu       sync.RWMutex
	checkers []Checker
}

// NewAggregator creates a new health aggregator. Without a config, checks
// run in parallel with a 10 second timeout.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{
		Timeout:  10 * time.Second,
		Parallel: true,
	}
	if len(config) > 0 {
		cfg = config[0]
		if cfg.Timeout <= 0 {
			cfg.Timeout = 10 * time.Second
		}
	}
	return &Aggregator{config: cfg}
}

// Register appends checkers. A checker whose name is already registered
// replaces the earlier one in place.
func (a *Aggregator) Register(checkers ...Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

next:
	for _, c := range checkers {
		for i, existing := range a.checkers {
			if existing.Name() == c.Name() {
				a.checkers[i] = c
				continue next
			}
		}
		a.checkers = append(a.checkers, c)
	}
}

// CheckerNames returns the names of all registered checkers in order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.checkers))
	for i, c := range a.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs a single named health check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	var checker Checker
	for _, c := range a.checkers {
		if c.Name() == name {
			checker = c
			break
		}
	}
	a.mu.RUnlock()

	if checker == nil {
		return Result{}, ErrCheckerNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return runCheck(ctx, checker), nil
}

// Run executes every registered check.
func (a *Aggregator) Run(ctx context.Context) (Report, error) {
	a.mu.RLock()
	checkers := make([]Checker, len(a.checkers))
	copy(checkers, a.checkers)
	a.mu.RUnlock()

	if len(checkers) == 0 {
		return Report{}, ErrNoCheckers
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	entries := make([]Entry, len(checkers))
	if a.config.Parallel {
		var wg sync.WaitGroup
		for i, checker := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entries[i] = Entry{Name: checker.Name(), Result: runCheck(ctx, checker)}
			}()
		}
		wg.Wait()
	} else {
		for i, checker := range checkers {
			entries[i] = Entry{Name: checker.Name(), Result: runCheck(ctx, checker)}
		}
	}

	return Report{Entries: entries, Status: OverallStatus(entries)}, nil
}

// OverallStatus is the worst status among entries; StatusOK when empty.
func OverallStatus(entries []Entry) Status {
	overall := StatusOK
	for _, e := range entries {
		if e.Result.Status > overall {
			overall = e.Result.Status
		}
	}
	return overall
}

func runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()

	resultCh := make(chan Result, 1)
	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		r := Fail("timed out", ErrCheckTimeout)
		r.Duration = time.Since(start)
		return r
	}
}
