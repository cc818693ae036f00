package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_BurstThenDeny(t *testing.T) {
	clock := newFakeClock()
	p := NewPacer(1, 2)
	p.now = clock.Now
	p.lastRefill = clock.Now()

	if !p.Allow() || !p.Allow() {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if p.Allow() {
		t.Error("expected third request to be denied")
	}

	clock.Advance(time.Second)
	if !p.Allow() {
		t.Error("expected a token after one second")
	}
}

func TestPacer_RefillCappedAtBurst(t *testing.T) {
	clock := newFakeClock()
	p := NewPacer(100, 3)
	p.now = clock.Now
	p.lastRefill = clock.Now()

	clock.Advance(time.Hour)
	if got := p.Tokens(); got != 3 {
		t.Errorf("expected tokens capped at 3, got %v", got)
	}
}

func TestPacer_WaitSpacesRequests(t *testing.T) {
	p := NewPacer(50, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// first is free, two more at 20ms each
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected pacing delay, got %v", elapsed)
	}
}

func TestPacer_WaitRespectsContext(t *testing.T) {
	p := NewPacer(0.01, 1)
	_ = p.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
