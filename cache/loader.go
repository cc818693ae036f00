package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/freeseek/freeseek-go/logger"
)

// LoadFunc fetches the value for a key on a miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Loader is a read-through cache over a Store.
type Loader struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLoader creates a Loader. ttl of 0 uses the store default.
func NewLoader(store Store, ttl time.Duration, log *logger.Logger) *Loader {
	return &Loader{
		store: store,
		ttl:   ttl,
		log:   logger.OrNop(log).WithComponent("cache"),
	}
}

// GetOrLoad returns the cached value for key or calls load once for all
// concurrent callers missing on the same key. Store failures are logged and
// treated as misses; load failures are returned and not cached.
func (l *Loader) GetOrLoad(ctx context.Context, key string, load LoadFunc) ([]byte, error) {
	if value, ok := l.lookup(ctx, key); ok {
		return value, nil
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		if value, ok := l.lookup(ctx, key); ok {
			return value, nil
		}
		l.misses.Add(1)

		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.store.Set(ctx, key, value, l.ttl); err != nil {
			l.log.Warn("cache write failed", logger.Fields("key", key, logger.FieldError, err.Error()))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.log.Debug("cache load shared", logger.Fields("key", key))
	}
	return v.([]byte), nil
}

// Invalidate removes key from the store.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}

// Stats returns hit and miss counts.
func (l *Loader) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}

// Close closes the underlying store.
func (l *Loader) Close() error {
	return l.store.Close()
}

func (l *Loader) lookup(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.Warn("cache read failed", logger.Fields("key", key, logger.FieldError, err.Error()))
		return nil, false
	}
	if ok {
		l.hits.Add(1)
	}
	return value, ok
}
