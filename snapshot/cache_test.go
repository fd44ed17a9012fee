package snapshot

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type counted struct {
	Key   string    `json:"key"`
	Calls int       `json:"calls"`
	At    time.Time `json:"at"`
}

func newCounter(clock clockwork.Clock) (func(context.Context, string) (counted, error), *int) {
	calls := 0
	return func(_ context.Context, key string) (counted, error) {
		calls++
		return counted{Key: key, Calls: calls, At: clock.Now()}, nil
	}, &calls
}

func TestCacheServesSameBytesWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	build, calls := newCounter(clock)
	c := NewCache(NewMemory(), build, Options{Clock: clock})

	first, err := c.Payload(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second - time.Millisecond)
		again, err := c.Payload(ctx, "m1")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("poll %d returned different bytes inside the window", i)
		}
	}
	clock.Advance(10 * time.Millisecond)
	later, err := c.Payload(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(first, later) {
		t.Error("payload not rebuilt after the window")
	}
	if *calls != 2 {
		t.Errorf("builds = %d, want 2", *calls)
	}
}

func TestCacheRebuildsAfterWindow(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	build, _ := newCounter(clock)
	c := NewCache(NewMemory(), build, Options{Clock: clock, RefreshWindow: 2 * time.Second})

	v1, err := c.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	v2, err := c.Get(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if v2.Calls != v1.Calls+1 || !v2.At.After(v1.At) {
		t.Errorf("second get = %+v, want a fresh build after %+v", v2, v1)
	}
	if v2.Key != "m1" {
		t.Errorf("decoded key = %q", v2.Key)
	}
}

type brokenStore struct{ puts int }

func (b *brokenStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("backend down")
}

func (b *brokenStore) Put(context.Context, string, Entry) error {
	b.puts++
	return errors.New("backend down")
}

func (b *brokenStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

func TestCacheBackendFailureFallsBackToBuild(t *testing.T) {
	clock := clockwork.NewFakeClock()
	build, calls := newCounter(clock)
	store := &brokenStore{}
	c := NewCache[counted](store, build, Options{Clock: clock})

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "m1"); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if *calls != 3 || store.puts != 3 {
		t.Errorf("builds = %d, puts = %d; want 3 and 3", *calls, store.puts)
	}
}

func TestCacheSweep(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	build, _ := newCounter(clock)
	store := NewMemory()
	c := NewCache(store, build, Options{Clock: clock, StaleAfter: 10 * time.Minute})

	if _, err := c.Payload(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(9 * time.Minute)
	if _, err := c.Payload(ctx, "recent"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)

	n, err := c.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v; want 1", n, err)
	}
	if _, ok, _ := store.Get(ctx, "old"); ok {
		t.Error("stale entry survived the sweep")
	}
	if _, ok, _ := store.Get(ctx, "recent"); !ok {
		t.Error("recent entry was swept")
	}
}
