package resilience

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/freeseek/freeseek-go/logger"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Reset values below this are treated as seconds from now rather than a unix time.
const resetDeltaCutoff = 1_000_000_000

// Unlimited is the remaining quota before any header has been seen.
const Unlimited = math.MaxInt

// RateLimitState is a snapshot of the tracked quota.
type RateLimitState struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitTracker derives wait decisions from the quota headers of the last
// response. It is safe for concurrent use.
type RateLimitTracker struct {
	log *logger.Logger
	now func() time.Time

	mu    sync.Mutex
	state RateLimitState
}

// TrackerOption configures a RateLimitTracker.
type TrackerOption func(*RateLimitTracker)

// WithTrackerClock overrides the clock, for tests.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *RateLimitTracker) { t.now = now }
}

// NewRateLimitTracker creates a tracker with unlimited remaining quota.
func NewRateLimitTracker(log *logger.Logger, opts ...TrackerOption) *RateLimitTracker {
	t := &RateLimitTracker{
		log:   logger.OrNop(log).WithComponent("ratelimit"),
		now:   time.Now,
		state: RateLimitState{Limit: Unlimited, Remaining: Unlimited},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update parses quota headers from a completed response. Absent headers leave
// the prior state untouched; malformed headers are logged and ignored.
func (t *RateLimitTracker) Update(h http.Header) {
	if h == nil {
		return
	}
	now := t.now()

	limit, limitOK := t.parseInt(h, HeaderRateLimitLimit)
	remaining, remainingOK := t.parseInt(h, HeaderRateLimitRemaining)
	resetAt, resetOK := t.parseReset(h, now)
	retryAt, retryOK := t.parseRetryAfter(h, now)

	t.mu.Lock()
	defer t.mu.Unlock()
	if limitOK {
		t.state.Limit = limit
	}
	if remainingOK {
		t.state.Remaining = remaining
	}
	if resetOK {
		t.state.ResetAt = resetAt
	}
	if retryOK {
		// Retry-After means the quota is spent until then.
		t.state.Remaining = 0
		if retryAt.After(t.state.ResetAt) {
			t.state.ResetAt = retryAt
		}
	}
}

// ShouldWait reports whether the next request should wait for the quota to reset.
func (t *RateLimitTracker) ShouldWait() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Remaining <= 1 && t.state.ResetAt.After(t.now())
}

// Delay returns how long until the tracked reset time, or zero.
func (t *RateLimitTracker) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return max(0, t.state.ResetAt.Sub(t.now()))
}

// WaitUntilReset blocks for max(0, resetAt - now) or until ctx is done.
func (t *RateLimitTracker) WaitUntilReset(ctx context.Context) error {
	d := t.Delay()
	if d > 0 {
		t.log.WithContext(ctx).Info("waiting for rate limit reset", logger.Fields(logger.FieldBackoff, d.Milliseconds()))
	}
	return sleepContext(ctx, d)
}

// Remaining returns the last known remaining quota.
func (t *RateLimitTracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Remaining
}

// Snapshot returns a copy of the tracked state.
func (t *RateLimitTracker) Snapshot() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *RateLimitTracker) parseInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		t.log.Warn("ignoring malformed rate limit header", logger.Fields("header", key, "value", raw))
		return 0, false
	}
	return v, true
}

func (t *RateLimitTracker) parseReset(h http.Header, now time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(h.Get(HeaderRateLimitReset))
	if raw == "" {
		return time.Time{}, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		t.log.Warn("ignoring malformed rate limit header", logger.Fields("header", HeaderRateLimitReset, "value", raw))
		return time.Time{}, false
	}
	if v < resetDeltaCutoff {
		return now.Add(time.Duration(v * float64(time.Second))), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

func (t *RateLimitTracker) parseRetryAfter(h http.Header, now time.Time) (time.Time, bool) {
	raw := strings.TrimSpace(h.Get(HeaderRetryAfter))
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return now.Add(time.Duration(secs) * time.Second), true
	}
	if at, err := http.ParseTime(raw); err == nil {
		return at, true
	}
	t.log.Warn("ignoring malformed rate limit header", logger.Fields("header", HeaderRetryAfter, "value", raw))
	return time.Time{}, false
}
