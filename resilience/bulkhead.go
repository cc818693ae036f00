package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrBulkheadTimeout is returned when no slot frees up within MaxWait.
var ErrBulkheadTimeout = errors.New("bulkhead wait timeout")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of attempts in flight.
	MaxConcurrent int
	// MaxWait bounds how long to wait for a slot. 0 waits until the context is done.
	MaxWait time.Duration
	// OnReject is called when a caller gives up waiting.
	OnReject func(name string, err error)
}

// Bulkhead caps the number of transport attempts in flight on one client.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire blocks until a slot is free. The returned release func must be
// called exactly once.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case b.sem <- struct{}{}:
		return b.release, nil
	default:
	}

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		return b.release, nil
	case <-timeout:
		err = ErrBulkheadTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	if b.config.OnReject != nil {
		b.config.OnReject(b.config.Name, err)
	}
	return nil, err
}

// Guard runs fn while holding a slot of b. A nil bulkhead runs fn directly.
func Guard[T any](ctx context.Context, b *Bulkhead, fn func() (T, error)) (T, error) {
	if b == nil {
		return fn()
	}
	release, err := b.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn()
}

func (b *Bulkhead) release() { <-b.sem }

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int { return b.config.MaxConcurrent }
