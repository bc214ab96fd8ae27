// Package queue publishes account ids for bulk reconciliation when an item
// cannot be linked because its account is not cached yet.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/cachesync/internal/metrics"
)

// Queue is a fire-and-forget, at-least-once publisher of account ids. The
// consumer re-derives the account's full reference sets and must be
// idempotent.
type Queue interface {
	Enqueue(ctx context.Context, accountID string) error
}

// Error reports a failed publish.
type Error struct {
	AccountID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("enqueue account %q for reconciliation: %v", e.AccountID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Instrumented counts publishes by status and wraps failures in *Error.
type Instrumented struct {
	next Queue
}

func Instrument(next Queue) *Instrumented { return &Instrumented{next: next} }

func (q *Instrumented) Enqueue(ctx context.Context, accountID string) error {
	err := q.next.Enqueue(ctx, accountID)
	if err != nil {
		metrics.ReconciliationsEnqueued.WithLabelValues("error").Inc()
		var qe *Error
		if errors.As(err, &qe) {
			return err
		}
		return &Error{AccountID: accountID, Err: err}
	}
	metrics.ReconciliationsEnqueued.WithLabelValues("success").Inc()
	return nil
}

// Unwrap returns the wrapped queue.
func (q *Instrumented) Unwrap() Queue { return q.next }

// Memory records published ids in order. It backs the "memory" queue driver.
type Memory struct {
	mu  sync.Mutex
	ids []string
	// Fail, when set, is returned by every Enqueue.
	Fail error
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Enqueue(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return &Error{AccountID: accountID, Err: m.Fail}
	}
	m.ids = append(m.ids, accountID)
	return nil
}

// Published returns a copy of the ids enqueued so far.
func (m *Memory) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// Drain returns and clears the published ids.
func (m *Memory) Drain() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.ids
	m.ids = nil
	return out
}
