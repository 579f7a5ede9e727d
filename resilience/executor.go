package resilience

import (
	"context"
	"time"
)

// Executor runs an API call with rate limiting, retry and a per-attempt
// timeout. The zero value and a nil *Executor run the call once, unguarded.
type Executor struct {
	retry   *Retry
	limiter *RateLimiter
	timeout *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor returns an Executor with the given guards.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRetry retries failed attempts according to r.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithRateLimiter makes every attempt wait for a token from rl.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

// WithTimeout bounds each attempt to d.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: d}) }
}

type guard interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Execute runs op. Guards nest as retry(rateLimit(timeout(op))), so each
// retry attempt takes its own token and gets its own deadline.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if e == nil {
		return op(ctx)
	}

	call := op
	for _, g := range e.guards() {
		inner, g := call, g
		call = func(ctx context.Context) error { return g.Execute(ctx, inner) }
	}
	return call(ctx)
}

// guards lists the configured guards from innermost to outermost.
func (e *Executor) guards() []guard {
	gs := make([]guard, 0, 3)
	if e.timeout != nil {
		gs = append(gs, e.timeout)
	}
	if e.limiter != nil {
		gs = append(gs, e.limiter)
	}
	if e.retry != nil {
		gs = append(gs, e.retry)
	}
	return gs
}
