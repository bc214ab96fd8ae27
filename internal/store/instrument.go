// Package store holds the record store backends and the decorators shared by
// all of them.
package store

import (
	"context"
	"errors"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/metrics"
)

// Instrumented counts every operation of the wrapped store by table, op and
// status. A Get that finds nothing is counted as "not_found", not "error".
type Instrumented[T any] struct {
	table string
	next  cache.Store[T]
}

var _ cache.Store[cache.Loan] = (*Instrumented[cache.Loan])(nil)

func Instrument[T any](table string, next cache.Store[T]) *Instrumented[T] {
	return &Instrumented[T]{table: table, next: next}
}

func (s *Instrumented[T]) Get(ctx context.Context, id string) (T, error) {
	rec, err := s.next.Get(ctx, id)
	s.observe("get", err)
	return rec, err
}

func (s *Instrumented[T]) Put(ctx context.Context, rec T) error {
	err := s.next.Put(ctx, rec)
	s.observe("put", err)
	return err
}

func (s *Instrumented[T]) Delete(ctx context.Context, id string) error {
	err := s.next.Delete(ctx, id)
	s.observe("delete", err)
	return err
}

func (s *Instrumented[T]) observe(op string, err error) {
	status := "success"
	switch {
	case errors.Is(err, cache.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(s.table, op, status).Inc()
}
