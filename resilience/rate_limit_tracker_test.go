package resilience

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"
)

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestRateLimitTracker_Defaults(t *testing.T) {
	tr := NewRateLimitTracker(nil)
	if tr.Remaining() != Unlimited {
		t.Errorf("expected unlimited remaining, got %d", tr.Remaining())
	}
	if tr.ShouldWait() {
		t.Error("fresh tracker must not wait")
	}
	if !tr.Snapshot().ResetAt.IsZero() {
		t.Error("expected zero reset time")
	}
}

func TestRateLimitTracker_ShouldWait(t *testing.T) {
	clock := newFakeClock()
	reset := strconv.FormatInt(clock.Now().Add(5*time.Second).Unix(), 10)

	tests := []struct {
		name string
		h    http.Header
		want bool
	}{
		{"plenty remaining", headers(HeaderRateLimitRemaining, "50", HeaderRateLimitReset, reset), false},
		{"one remaining", headers(HeaderRateLimitRemaining, "1", HeaderRateLimitReset, reset), true},
		{"exhausted", headers(HeaderRateLimitRemaining, "0", HeaderRateLimitReset, reset), true},
		{"reset in the past", headers(HeaderRateLimitRemaining, "0", HeaderRateLimitReset, "1600000000"), false},
		{"delta seconds", headers(HeaderRateLimitRemaining, "0", HeaderRateLimitReset, "3"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewRateLimitTracker(nil, WithTrackerClock(clock.Now))
			tr.Update(tt.h)
			if got := tr.ShouldWait(); got != tt.want {
				t.Errorf("ShouldWait() = %v, want %v (state %+v)", got, tt.want, tr.Snapshot())
			}
		})
	}
}

func TestRateLimitTracker_MalformedHeadersKeepState(t *testing.T) {
	clock := newFakeClock()
	tr := NewRateLimitTracker(nil, WithTrackerClock(clock.Now))
	tr.Update(headers(HeaderRateLimitRemaining, "7", HeaderRateLimitReset, "30", HeaderRateLimitLimit, "100"))
	before := tr.Snapshot()

	tr.Update(headers(HeaderRateLimitRemaining, "lots", HeaderRateLimitReset, "soon", HeaderRateLimitLimit, "-1"))
	tr.Update(http.Header{})
	tr.Update(nil)

	if got := tr.Snapshot(); got != before {
		t.Errorf("malformed or absent headers changed state: before %+v after %+v", before, got)
	}
}

func TestRateLimitTracker_RetryAfter(t *testing.T) {
	clock := newFakeClock()
	tr := NewRateLimitTracker(nil, WithTrackerClock(clock.Now))

	tr.Update(headers(HeaderRetryAfter, "4"))

	if !tr.ShouldWait() {
		t.Error("Retry-After should force a wait")
	}
	if d := tr.Delay(); d != 4*time.Second {
		t.Errorf("expected 4s delay, got %v", d)
	}

	tr.Update(headers(HeaderRetryAfter, clock.Now().Add(10*time.Second).UTC().Format(http.TimeFormat)))
	if d := tr.Delay(); d != 10*time.Second {
		t.Errorf("expected 10s delay from HTTP date, got %v", d)
	}
}

func TestRateLimitTracker_WaitUntilReset(t *testing.T) {
	tr := NewRateLimitTracker(nil)
	tr.Update(headers(HeaderRateLimitRemaining, "0", HeaderRateLimitReset, "0.05"))

	start := time.Now()
	if err := tr.WaitUntilReset(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected to wait for reset, waited %v", elapsed)
	}
}

func TestRateLimitTracker_WaitUntilResetRespectsContext(t *testing.T) {
	tr := NewRateLimitTracker(nil)
	tr.Update(headers(HeaderRateLimitRemaining, "0", HeaderRateLimitReset, "3600"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := tr.WaitUntilReset(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRateLimitTracker_NoWaitWhenResetPassed(t *testing.T) {
	tr := NewRateLimitTracker(nil)
	if err := tr.WaitUntilReset(context.Background()); err != nil {
		t.Errorf("expected immediate return, got %v", err)
	}
}
