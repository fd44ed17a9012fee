package snapshot

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry is one cached value and the time it was built.
type Entry struct {
	Payload []byte
	BuiltAt time.Time
}

// Store is a cache backend keyed by match id.
type Store interface {
	// Get reports ok=false on a miss.
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	// Sweep evicts every entry built before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Encode writes v as msgpack using its json field names.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Memory is a single-instance Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *Memory) Put(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.BuiltAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
