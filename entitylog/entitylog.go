// Package entitylog defines append-only entity histories where the current
// value of an entity is the most recent row written for its key.
package entitylog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Latest when a key has no rows.
	ErrNotFound = errors.New("entitylog: no rows for key")
	// ErrUnavailable wraps every failure of the backing store.
	ErrUnavailable = errors.New("entitylog: store unavailable")
)

// Key identifies one entity. Partition groups keys of the same match so
// LatestIn can scan them together.
type Key interface {
	comparable
	Partition() string
}

// Entry is one immutable row.
type Entry[V any] struct {
	Seq     int64
	LogTime time.Time
	Value   V
}

// Keyed pairs a key with its latest row.
type Keyed[K Key, V any] struct {
	Key   K
	Entry Entry[V]
}

// Builder derives the next row from the latest one. It receives the zero value
// when the key has no rows. Returning an error aborts the append.
type Builder[V any] func(latest V, exists bool) (V, error)

// Log is an append-only history per key.
type Log[K Key, V any] interface {
	// Append reads the latest row for key, builds the next one and inserts it.
	Append(ctx context.Context, key K, build Builder[V]) (Entry[V], error)
	// Latest returns the most recent row or ErrNotFound.
	Latest(ctx context.Context, key K) (Entry[V], error)
	// History returns rows logged at or after since, oldest first.
	History(ctx context.Context, key K, since time.Time) ([]Entry[V], error)
	// LatestIn returns the latest row of every key in a partition, ordered by
	// the sequence of each key's first row.
	LatestIn(ctx context.Context, partition string) ([]Keyed[K, V], error)
}
