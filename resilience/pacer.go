package resilience

import (
	"context"
	"sync"
	"time"
)

// Pacer is a token bucket that spaces out requests on the client side,
// independently of any server-side quota.
type Pacer struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewPacer allows rate requests per second with bursts of up to burst.
func NewPacer(rate float64, burst int) *Pacer {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = max(1, int(rate))
	}
	p := &Pacer{rate: rate, burst: float64(burst), now: time.Now}
	p.tokens = p.burst
	p.lastRefill = p.now()
	return p
}

// Allow takes a token without blocking.
func (p *Pacer) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refill()
	if p.tokens >= 1 {
		p.tokens--
		return true
	}
	return false
}

// Wait reserves a token and sleeps until it is due. A cancelled wait keeps the
// reservation, which only delays later callers.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.refill()
	p.tokens--
	var d time.Duration
	if p.tokens < 0 {
		d = time.Duration(-p.tokens / p.rate * float64(time.Second))
	}
	p.mu.Unlock()
	return sleepContext(ctx, d)
}

// Tokens returns the current number of available tokens.
func (p *Pacer) Tokens() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refill()
	return p.tokens
}

func (p *Pacer) refill() {
	now := p.now()
	p.tokens = min(p.burst, p.tokens+now.Sub(p.lastRefill).Seconds()*p.rate)
	p.lastRefill = now
}
