// Package resilience bounds and retries calls to the remote service.
//
// Three patterns are provided and compose through Executor:
//
//   - Timeout: caps each attempt so a stalled request cannot block a poll
//     loop or a command indefinitely.
//
//   - Retry: retries transient failures with constant, linear or
//     exponential backoff. Errors wrapped with Permanent are never retried.
//
//   - Rate Limiter: a token bucket that spaces out outbound requests.
//
// Usage:
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 2, Burst: 4})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return client.Do(ctx, req)
//	})
package resilience
