package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spot-game-server/entitylog"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// dbErr maps gorm failures onto the entity log errors.
func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entitylog.ErrNotFound
	}
	return fmt.Errorf("%s: %w: %w", op, entitylog.ErrUnavailable, err)
}

// codec maps between a log's key/value and its table row R.
type codec[K entitylog.Key, V any, R any] struct {
	table    string
	keyCols  string // key columns, partition column first
	keyWhere string // condition selecting one key
	where    func(K) []any
	toRow    func(K, V, time.Time) R
	fromRow  func(R) (K, entitylog.Entry[V])
}

// gormLog is an entitylog.Log over one insert-only table.
type gormLog[K entitylog.Key, V any, R any] struct {
	db    *gorm.DB
	clock clockwork.Clock
	c     codec[K, V, R]
}

func (l *gormLog[K, V, R]) Append(ctx context.Context, key K, build entitylog.Builder[V]) (entitylog.Entry[V], error) {
	var (
		out      entitylog.Entry[V]
		buildErr error
	)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Appends to one key are serialized so build always sees the latest
		// committed row.
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", l.c.table+":"+fmt.Sprint(key)).Error; err != nil {
			return err
		}
		var latest R
		var prev V
		exists := true
		err := tx.Where(l.c.keyWhere, l.c.where(key)...).Order("seq DESC").Take(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			exists = false
		case err != nil:
			return err
		default:
			_, e := l.c.fromRow(latest)
			prev = e.Value
		}

		next, err := build(prev, exists)
		if err != nil {
			buildErr = err
			return err
		}
		row := l.c.toRow(key, next, l.clock.Now())
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		_, out = l.c.fromRow(row)
		return nil
	})
	if buildErr != nil {
		return entitylog.Entry[V]{}, buildErr
	}
	return out, dbErr("append "+l.c.table, err)
}

func (l *gormLog[K, V, R]) Latest(ctx context.Context, key K) (entitylog.Entry[V], error) {
	var row R
	err := l.db.WithContext(ctx).Where(l.c.keyWhere, l.c.where(key)...).Order("seq DESC").Take(&row).Error
	if err != nil {
		return entitylog.Entry[V]{}, dbErr("latest "+l.c.table, err)
	}
	_, e := l.c.fromRow(row)
	return e, nil
}

func (l *gormLog[K, V, R]) History(ctx context.Context, key K, since time.Time) ([]entitylog.Entry[V], error) {
	var rows []R
	err := l.db.WithContext(ctx).
		Where(l.c.keyWhere, l.c.where(key)...).
		Where("log_time >= ?", since).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, dbErr("history "+l.c.table, err)
	}
	out := make([]entitylog.Entry[V], len(rows))
	for i, r := range rows {
		_, out[i] = l.c.fromRow(r)
	}
	return out, nil
}

func (l *gormLog[K, V, R]) LatestIn(ctx context.Context, partition string) ([]entitylog.Keyed[K, V], error) {
	query := fmt.Sprintf(`SELECT l.* FROM %[1]s l
		JOIN (SELECT MAX(seq) AS last_seq, MIN(seq) AS first_seq FROM %[1]s WHERE match_id = ? GROUP BY %[2]s) k
		ON l.seq = k.last_seq
		ORDER BY k.first_seq`, l.c.table, l.c.keyCols)
	var rows []R
	if err := l.db.WithContext(ctx).Raw(query, partition).Scan(&rows).Error; err != nil {
		return nil, dbErr("latest in "+l.c.table, err)
	}
	out := make([]entitylog.Keyed[K, V], len(rows))
	for i, r := range rows {
		k, e := l.c.fromRow(r)
		out[i] = entitylog.Keyed[K, V]{Key: k, Entry: e}
	}
	return out, nil
}
