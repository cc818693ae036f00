package freeseek

import "sync/atomic"

type counters struct {
	requests  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	retries   atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the client counters.
// Requests counts logical calls that passed validation; each of them ends
// in exactly one success or failure once it completes.
type MetricsSnapshot struct {
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Retries   int64 `json:"retries"`

	CircuitState       string `json:"circuit_state"`
	RateLimitRemaining int    `json:"rate_limit_remaining"`
}

// InFlight returns the number of calls started but not yet completed.
func (m MetricsSnapshot) InFlight() int64 {
	return m.Requests - m.Successes - m.Failures
}

// Metrics returns the current counters.
func (c *Client) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Requests:           c.metrics.requests.Load(),
		Successes:          c.metrics.successes.Load(),
		Failures:           c.metrics.failures.Load(),
		Retries:            c.metrics.retries.Load(),
		CircuitState:       c.breaker.State().String(),
		RateLimitRemaining: c.tracker.Remaining(),
	}
}
