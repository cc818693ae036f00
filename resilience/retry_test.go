package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_KTransientFailuresThenSuccess(t *testing.T) {
	for k := 0; k < 3; k++ {
		callCount := 0
		result, err := Retry(context.Background(), fastRetry(3), func() (int, error) {
			callCount++
			if callCount <= k {
				return 0, errors.New("temporary error")
			}
			return 7, nil
		})
		if err != nil {
			t.Fatalf("k=%d: expected no error, got %v", k, err)
		}
		if result != 7 {
			t.Errorf("k=%d: expected 7, got %d", k, result)
		}
		if callCount != k+1 {
			t.Errorf("k=%d: expected %d attempts, got %d", k, k+1, callCount)
		}
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")

	_, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		return "", testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_RetryIfFilter(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := fastRetry(5)
	cfg.RetryIf = func(err error) bool { return !errors.Is(err, fatal) }

	callCount := 0
	_, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("non-retryable errors must not be retried, got %d calls", callCount)
	}
}

func TestRetry_CancelStopsFurtherAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	callCount := 0
	start := time.Now()
	_, err := Retry(ctx, cfg, func() (string, error) {
		callCount++
		return "", errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", callCount)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation must interrupt the backoff sleep")
	}
}

func TestRetry_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Retry(ctx, fastRetry(3), func() (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("fn must not run on a cancelled context")
	}
}

func TestRetry_BackoffFuncOverridesDelay(t *testing.T) {
	cfg := fastRetry(2)
	cfg.MaxBackoff = time.Hour
	cfg.InitialBackoff = time.Hour
	var observed time.Duration
	cfg.BackoffFunc = func(attempt int, err error, backoff time.Duration) time.Duration {
		if backoff != time.Hour {
			t.Errorf("expected computed backoff 1h, got %v", backoff)
		}
		return time.Millisecond
	}
	cfg.OnRetry = func(_ int, _ error, backoff time.Duration) { observed = backoff }

	calls := 0
	_, _ = Retry(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, errors.New("x")
	})

	if observed != time.Millisecond {
		t.Errorf("OnRetry should see the overridden delay, got %v", observed)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = RetryFunc(context.Background(), cfg, func() error {
		return errors.New("error")
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retries after attempts [1 2], got %v", attempts)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MinBackoff:     2 * time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 2 * time.Second},  // 1s raised to min
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 10 * time.Second}, // capped at max
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, cfg)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.5,
	}
	for i := 0; i < 50; i++ {
		got := calculateBackoff(1, cfg)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered backoff %v out of range", got)
		}
	}
}
