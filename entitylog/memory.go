package entitylog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-process Log backed by an ordered slice per key. Appends are
// serialized by a mutex so each insert is atomic.
type Memory[K Key, V any] struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	rows        map[K][]Entry[V]
	order       map[string][]K
	seq         int64
	unavailable bool
}

// NewMemory creates an empty log stamped by clock.
func NewMemory[K Key, V any](clock clockwork.Clock) *Memory[K, V] {
	return &Memory[K, V]{
		clock: clock,
		rows:  make(map[K][]Entry[V]),
		order: make(map[string][]K),
	}
}

// SetUnavailable makes every call fail with ErrUnavailable until reset.
func (m *Memory[K, V]) SetUnavailable(down bool) {
	m.mu.Lock()
	m.unavailable = down
	m.mu.Unlock()
}

func (m *Memory[K, V]) Append(ctx context.Context, key K, build Builder[V]) (Entry[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return Entry[V]{}, fmt.Errorf("append: %w", ErrUnavailable)
	}

	var latest V
	rows := m.rows[key]
	if len(rows) > 0 {
		latest = rows[len(rows)-1].Value
	}
	next, err := build(latest, len(rows) > 0)
	if err != nil {
		return Entry[V]{}, err
	}

	m.seq++
	e := Entry[V]{Seq: m.seq, LogTime: m.clock.Now(), Value: next}
	if len(rows) == 0 {
		p := key.Partition()
		m.order[p] = append(m.order[p], key)
	}
	m.rows[key] = append(rows, e)
	return e, nil
}

func (m *Memory[K, V]) Latest(ctx context.Context, key K) (Entry[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return Entry[V]{}, fmt.Errorf("latest: %w", ErrUnavailable)
	}
	rows := m.rows[key]
	if len(rows) == 0 {
		return Entry[V]{}, ErrNotFound
	}
	return rows[len(rows)-1], nil
}

func (m *Memory[K, V]) History(ctx context.Context, key K, since time.Time) ([]Entry[V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, fmt.Errorf("history: %w", ErrUnavailable)
	}
	var out []Entry[V]
	for _, e := range m.rows[key] {
		if !e.LogTime.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory[K, V]) LatestIn(ctx context.Context, partition string) ([]Keyed[K, V], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return nil, fmt.Errorf("latest in %s: %w", partition, ErrUnavailable)
	}
	keys := m.order[partition]
	out := make([]Keyed[K, V], 0, len(keys))
	for _, k := range keys {
		rows := m.rows[k]
		out = append(out, Keyed[K, V]{Key: k, Entry: rows[len(rows)-1]})
	}
	return out, nil
}
