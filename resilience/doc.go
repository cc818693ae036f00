// Package resilience provides the fault-tolerance policies used around each
// transport attempt of the freeseek client.
//
// This package includes:
//   - CircuitBreaker: fails fast while the API is unhealthy
//   - Retry: retries transient failures with clamped exponential backoff
//   - RateLimitTracker: throttles from X-RateLimit-* response headers
//   - Bulkhead: caps in-flight attempts
//   - RateLimiter: client-side token bucket pacing
//
// Policies are explicit values composed imperatively. The breaker sits inside
// the retry loop so every attempt is gated on its own:
//
//	cb := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("api"))
//	resp, err := resilience.Retry(ctx, retryCfg, func() (*Response, error) {
//	    if tracker.ShouldWait() {
//	        if err := tracker.WaitUntilReset(ctx); err != nil {
//	            return nil, err
//	        }
//	    }
//	    return resilience.Call(cb, func() (*Response, error) {
//	        return transport.Do(ctx, req)
//	    })
//	})
package resilience
