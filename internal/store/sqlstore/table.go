package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// Table is a cache.Store over one SQL table.
type Table[T cache.Record[T]] struct {
	db   *DB
	name string
	ttl  cache.TTL
	now  func() time.Time

	getQ, putQ, delQ string
}

var _ cache.Store[cache.Request] = (*Table[cache.Request])(nil)

// NewTable creates the backing table if needed.
func NewTable[T cache.Record[T]](ctx context.Context, db *DB, name string, ttl cache.TTL) (*Table[T], error) {
	if !ValidIdentifier(name) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", name)
	}
	d := db.dialect
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		payload %s NOT NULL,
		expires_at BIGINT NOT NULL
	)`, name, d.PayloadType)
	if _, err := db.db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expires_at_idx ON %s (expires_at)`, name, name)
	if _, err := db.db.ExecContext(ctx, idx); err != nil {
		return nil, fmt.Errorf("create index on %s: %w", name, err)
	}
	db.register(name)

	return &Table[T]{
		db:   db,
		name: name,
		ttl:  ttl,
		now:  time.Now,
		getQ: fmt.Sprintf(`SELECT payload FROM %s WHERE id = %s`, name, d.bind(1)),
		putQ: fmt.Sprintf(`INSERT INTO %s (id, payload, expires_at) VALUES (%s, %s, %s)
			ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
			name, d.bind(1), d.bind(2), d.bind(3)),
		delQ: fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, name, d.bind(1)),
	}, nil
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (t *Table[T]) WithClock(now func() time.Time) *Table[T] {
	t.now = now
	return t
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	var payload string
	err := t.db.db.QueryRowContext(ctx, t.getQ, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, cache.ErrNotFound
	}
	if err != nil {
		return rec, cache.Wrap(t.name, "get", id, err)
	}
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, cache.Wrap(t.name, "get", id, fmt.Errorf("decode payload: %w", err))
	}
	return rec, nil
}

func (t *Table[T]) Put(ctx context.Context, rec T) error {
	id := rec.RecordID()
	stamped := rec.Stamped(t.now(), t.ttl)
	payload, err := json.Marshal(stamped)
	if err != nil {
		return cache.Wrap(t.name, "put", id, fmt.Errorf("encode payload: %w", err))
	}
	expiry, err := expiryOf(payload)
	if err != nil {
		return cache.Wrap(t.name, "put", id, err)
	}
	if _, err := t.db.db.ExecContext(ctx, t.putQ, id, string(payload), expiry); err != nil {
		return cache.Wrap(t.name, "put", id, err)
	}
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if _, err := t.db.db.ExecContext(ctx, t.delQ, id); err != nil {
		return cache.Wrap(t.name, "delete", id, err)
	}
	return nil
}

// expiryOf reads the expiry_date attribute every record type serialises.
func expiryOf(payload []byte) (int64, error) {
	var head struct {
		Expiry int64 `json:"expiry_date"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return 0, fmt.Errorf("read expiry: %w", err)
	}
	return head.Expiry, nil
}
