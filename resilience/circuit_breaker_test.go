package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func tripped(t *testing.T, clock *fakeClock) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		Now:              clock.Now,
	})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("fail") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected StateOpen after 3 failures, got %s", cb.State())
	}
	return cb
}

func TestCircuitBreaker_StartsInClosedState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestCircuitBreaker_AllowsRequestsWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var called bool
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := tripped(t, newFakeClock())

	err := cb.Execute(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if cb.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))
	fail := func() error { return errors.New("fail") }

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(fail)

	if cb.State() != StateClosed {
		t.Errorf("non-consecutive failures must not open the circuit, got %s", cb.State())
	}
	if cb.Failures() != 1 {
		t.Errorf("expected 1 failure, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_StaysOpenUntilRecoveryElapsed(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)

	clock.Advance(30 * time.Second)
	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen at exactly the recovery timeout, got %s", cb.State())
	}

	clock.Advance(time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Errorf("expected StateHalfOpen after recovery timeout, got %s", cb.State())
	}
}

func TestCircuitBreaker_ClosesAfterSuccessInHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)
	clock.Advance(31 * time.Second)

	got, err := Call(cb, func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("expected trial to succeed, got %q, %v", got, err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected failure count reset to 0, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)
	clock.Advance(31 * time.Second)

	_ = cb.Execute(func() error { return errors.New("still failing") })

	if cb.State() != StateOpen {
		t.Errorf("expected StateOpen, got %s", cb.State())
	}
	if !cb.LastFailure().Equal(clock.Now()) {
		t.Error("re-opening should restart the recovery timer")
	}
}

func TestCircuitBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)
	clock.Advance(31 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.Execute(func() error {
		t.Error("second call must not run while the trial is in flight")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen for concurrent trial, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial returned %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after trial, got %s", cb.State())
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, ignored) },
	})

	err := cb.Execute(func() error { return ignored })
	if !errors.Is(err, ignored) {
		t.Errorf("expected the operation error to be returned, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("filtered errors must not trip the breaker, got %s", cb.State())
	}
}

func ignoreCanceled(err error) bool { return !errors.Is(err, context.Canceled) }

func TestCircuitBreaker_IgnoredErrorInHalfOpen(t *testing.T) {
	clock := newFakeClock()
	cb := tripped(t, clock)
	cb.config.IsFailure = ignoreCanceled
	clock.Advance(31 * time.Second)

	_ = cb.Execute(func() error { return context.Canceled })
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen after an ignored trial, got %s", cb.State())
	}
	if cb.Failures() != 3 {
		t.Errorf("expected the failure count to stay at 3, got %d", cb.Failures())
	}

	called := false
	_ = cb.Execute(func() error { called = true; return nil })
	if !called {
		t.Fatal("expected another trial to be admitted")
	}
	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after a successful trial, got %s", cb.State())
	}
}

func TestCircuitBreaker_IgnoredErrorKeepsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		IsFailure:        ignoreCanceled,
	})

	fail := func() error { return errors.New("fail") }
	steps := []func() error{fail, func() error { return context.Canceled }, fail, func() error { return context.Canceled }, fail}
	for _, step := range steps {
		_ = cb.Execute(step)
	}
	if cb.State() != StateOpen {
		t.Errorf("expected ignored errors not to reset the count, got %s with %d failures", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_RecordFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	cb.RecordFailure(nil)
	if cb.Failures() != 0 {
		t.Fatalf("nil error must not count, got %d failures", cb.Failures())
	}

	cb.RecordFailure(errors.New("middleware failed"))
	cb.RecordFailure(errors.New("middleware failed"))
	if cb.State() != StateOpen {
		t.Errorf("expected recorded failures to open the circuit, got %s", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := tripped(t, newFakeClock())

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed after reset, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var stateChanges []struct{ from, to State }
	clock := newFakeClock()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Second,
		Now:              clock.Now,
		OnStateChange: func(name string, from, to State) {
			if name != "test" {
				t.Errorf("expected name test, got %s", name)
			}
			stateChanges = append(stateChanges, struct{ from, to State }{from, to})
		},
	})

	_ = cb.Execute(func() error { return errors.New("fail") })
	clock.Advance(11 * time.Second)
	_ = cb.Execute(func() error { return nil })

	want := []struct{ from, to State }{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(stateChanges) != len(want) {
		t.Fatalf("expected %d state changes, got %d", len(want), len(stateChanges))
	}
	for i, w := range want {
		if stateChanges[i] != w {
			t.Errorf("change %d: expected %s->%s, got %s->%s", i, w.from, w.to, stateChanges[i].from, stateChanges[i].to)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(func() error {
				return nil
			})
			_ = cb.State()
			_ = cb.Failures()
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("expected StateClosed, got %s", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
