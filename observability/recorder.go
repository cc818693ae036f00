package observability

import (
	"context"
	"time"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives client lifecycle events. Implementations must be safe
// for concurrent use and must not block.
type Recorder interface {
	// RequestStarted is called once per logical call, after input validation.
	RequestStarted(ctx context.Context, operation string)
	// RequestFinished is called once per logical call with its final outcome.
	// errType is empty on success.
	RequestFinished(ctx context.Context, operation, errType string, duration time.Duration)
	// RetryAttempted is called before each retry of a transport attempt.
	RetryAttempted(ctx context.Context, operation string, attempt int)
	// CircuitStateChanged is called on every breaker transition.
	CircuitStateChanged(name, from, to string)
	// RateLimitObserved reports the remaining quota after a response.
	RateLimitObserved(remaining int)
}

// Nop discards all events.
type Nop struct{}

func (Nop) RequestStarted(context.Context, string)                         {}
func (Nop) RequestFinished(context.Context, string, string, time.Duration) {}
func (Nop) RetryAttempted(context.Context, string, int)                    {}
func (Nop) CircuitStateChanged(string, string, string)                     {}
func (Nop) RateLimitObserved(int)                                          {}

type multi []Recorder

// Multi returns a Recorder forwarding every event to each non-nil r.
func Multi(rs ...Recorder) Recorder {
	var m multi
	for _, r := range rs {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 0 {
		return Nop{}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multi) RequestStarted(ctx context.Context, operation string) {
	for _, r := range m {
		r.RequestStarted(ctx, operation)
	}
}

func (m multi) RequestFinished(ctx context.Context, operation, errType string, d time.Duration) {
	for _, r := range m {
		r.RequestFinished(ctx, operation, errType, d)
	}
}

func (m multi) RetryAttempted(ctx context.Context, operation string, attempt int) {
	for _, r := range m {
		r.RetryAttempted(ctx, operation, attempt)
	}
}

func (m multi) CircuitStateChanged(name, from, to string) {
	for _, r := range m {
		r.CircuitStateChanged(name, from, to)
	}
}

func (m multi) RateLimitObserved(remaining int) {
	for _, r := range m {
		r.RateLimitObserved(remaining)
	}
}
