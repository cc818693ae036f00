package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoader_LoadsOnce(t *testing.T) {
	m, _ := NewMemory(8, time.Minute)
	l := NewLoader(m, 0, nil)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("info"), nil
	}

	for range 3 {
		got, err := l.GetOrLoad(ctx, "model:v3", load)
		if err != nil || string(got) != "info" {
			t.Fatalf("unexpected result %q %v", got, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected one load, got %d", calls.Load())
	}
	hits, misses := l.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits / 1 miss, got %d / %d", hits, misses)
	}
}

func TestLoader_CoalescesConcurrentMisses(t *testing.T) {
	m, _ := NewMemory(8, time.Minute)
	l := NewLoader(m, 0, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("x"), nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.GetOrLoad(context.Background(), "k", load); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one load for concurrent misses, got %d", calls.Load())
	}
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	m, _ := NewMemory(8, time.Minute)
	l := NewLoader(m, 0, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	if _, err := l.GetOrLoad(ctx, "k", func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	got, err := l.GetOrLoad(ctx, "k", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	if err != nil || string(got) != "ok" {
		t.Errorf("expected retry to load, got %q %v", got, err)
	}
}

func TestLoader_Invalidate(t *testing.T) {
	store, _ := newTestRedis(t)
	l := NewLoader(store, 0, nil)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	}
	_, _ = l.GetOrLoad(ctx, "k", load)
	_ = l.Invalidate(ctx, "k")
	_, _ = l.GetOrLoad(ctx, "k", load)

	if calls.Load() != 2 {
		t.Errorf("expected reload after invalidate, got %d loads", calls.Load())
	}
}
