package snapshot

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultRefreshWindow = 5 * time.Second
	DefaultStaleAfter    = 10 * time.Minute
)

// Cache serves a stored snapshot while it is younger than the refresh window
// and rebuilds it otherwise. Concurrent misses may each rebuild; the last
// write wins.
type Cache[T any] struct {
	store      Store
	clock      clockwork.Clock
	refresh    time.Duration
	staleAfter time.Duration
	build      func(ctx context.Context, key string) (T, error)
}

type Options struct {
	Clock         clockwork.Clock
	RefreshWindow time.Duration
	StaleAfter    time.Duration
}

func NewCache[T any](store Store, build func(ctx context.Context, key string) (T, error), opts Options) *Cache[T] {
	c := &Cache[T]{
		store:      store,
		clock:      opts.Clock,
		refresh:    opts.RefreshWindow,
		staleAfter: opts.StaleAfter,
		build:      build,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.refresh <= 0 {
		c.refresh = DefaultRefreshWindow
	}
	if c.staleAfter <= 0 {
		c.staleAfter = DefaultStaleAfter
	}
	return c
}

// Payload returns the encoded snapshot for key.
func (c *Cache[T]) Payload(ctx context.Context, key string) ([]byte, error) {
	now := c.clock.Now()
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("[Cache] read %s failed, rebuilding: %v", key, err)
		ok = false
	}
	if ok && now.Sub(e.BuiltAt) < c.refresh {
		return e.Payload, nil
	}

	v, err := c.build(ctx, key)
	if err != nil {
		return nil, err
	}
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, key, Entry{Payload: payload, BuiltAt: now}); err != nil {
		log.Printf("[Cache] write %s failed: %v", key, err)
	}
	return payload, nil
}

func (c *Cache[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	payload, err := c.Payload(ctx, key)
	if err != nil {
		return v, err
	}
	err = Decode(payload, &v)
	return v, err
}

// Sweep evicts entries older than the staleness bound.
func (c *Cache[T]) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx, c.clock.Now().Add(-c.staleAfter))
}
