// Package cachetest provides store doubles shared by package tests.
package cachetest

import (
	"context"
	"sync"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
)

// Faulty wraps a store, counts calls per operation and returns the injected
// error for an operation instead of calling through.
type Faulty[T any] struct {
	Next cache.Store[T]

	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
}

func NewFaulty[T any](next cache.Store[T]) *Faulty[T] {
	return &Faulty[T]{Next: next, fail: map[string]error{}, calls: map[string]int{}}
}

// FailOn makes op ("get", "put" or "delete") return err. A nil err clears it.
func (f *Faulty[T]) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Calls returns how many times op was invoked.
func (f *Faulty[T]) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of invocations across all operations.
func (f *Faulty[T]) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *Faulty[T]) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.fail[op]
}

func (f *Faulty[T]) Get(ctx context.Context, id string) (T, error) {
	if err := f.record("get"); err != nil {
		var zero T
		return zero, err
	}
	return f.Next.Get(ctx, id)
}

func (f *Faulty[T]) Put(ctx context.Context, rec T) error {
	if err := f.record("put"); err != nil {
		return err
	}
	return f.Next.Put(ctx, rec)
}

func (f *Faulty[T]) Delete(ctx context.Context, id string) error {
	if err := f.record("delete"); err != nil {
		return err
	}
	return f.Next.Delete(ctx, id)
}
