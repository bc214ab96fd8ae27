// Package memory provides a process-local record store used by tests and by
// the "memory" store driver for local runs.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// Table is a map-backed cache.Store. Rows are kept encoded so callers never
// share slices with the table.
type Table[T cache.Record[T]] struct {
	mu   sync.RWMutex
	rows map[string][]byte
	ttl  cache.TTL
	now  func() time.Time
}

var _ cache.Store[cache.Account] = (*Table[cache.Account])(nil)

func NewTable[T cache.Record[T]](ttl cache.TTL) *Table[T] {
	return &Table[T]{rows: make(map[string][]byte), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (t *Table[T]) WithClock(now func() time.Time) *Table[T] {
	t.now = now
	return t
}

func (t *Table[T]) Get(_ context.Context, id string) (T, error) {
	var rec T
	t.mu.RLock()
	raw, ok := t.rows[id]
	t.mu.RUnlock()
	if !ok {
		return rec, cache.ErrNotFound
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, cache.Wrap("memory", "get", id, err)
	}
	return rec, nil
}

func (t *Table[T]) Put(_ context.Context, rec T) error {
	raw, err := json.Marshal(rec.Stamped(t.now(), t.ttl))
	if err != nil {
		return cache.Wrap("memory", "put", rec.RecordID(), err)
	}
	t.mu.Lock()
	t.rows[rec.RecordID()] = raw
	t.mu.Unlock()
	return nil
}

func (t *Table[T]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	delete(t.rows, id)
	t.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
