// Package link maintains the back-references from an account record to the
// loans and requests it owns.
package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/metrics"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
)

// Outcome describes what a Link or Unlink call did to the account.
type Outcome int

const (
	// Linked: the item id is in the account's reference set.
	Linked Outcome = iota + 1
	// Deferred: the account is not cached; its id went to the reconciliation queue.
	Deferred
	// Unlinked: the item id is not in the account's reference set.
	Unlinked
	// NoAccount: the account is not cached, so there is nothing to unlink.
	NoAccount
)

func (o Outcome) String() string {
	switch o {
	case Linked:
		return "linked"
	case Deferred:
		return "deferred"
	case Unlinked:
		return "unlinked"
	case NoAccount:
		return "no_account"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Manager adds and removes item ids on account records.
//
// The read-modify-write of an account is not atomic: two concurrent calls on
// the same account can lose one update, the last write winning.
type Manager struct {
	accounts cache.Store[cache.Account]
	queue    queue.Queue
}

func NewManager(accounts cache.Store[cache.Account], q queue.Queue) *Manager {
	return &Manager{accounts: accounts, queue: q}
}

// Link ensures itemID is in the account's reference set for kind and writes
// the account back, refreshing its expiry. When the account is not cached its
// id is enqueued for reconciliation and Deferred is returned.
func (m *Manager) Link(ctx context.Context, accountID, itemID string, kind cache.ItemKind) (Outcome, error) {
	acct, err := m.accounts.Get(ctx, accountID)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		if err := m.queue.Enqueue(ctx, accountID); err != nil {
			return 0, err
		}
		return m.observe(kind, Deferred), nil
	case err != nil:
		return 0, err
	}

	acct.Refs(kind).Add(itemID)
	if err := m.accounts.Put(ctx, acct); err != nil {
		return 0, err
	}
	return m.observe(kind, Linked), nil
}

// Unlink ensures itemID is not in the account's reference set for kind. A
// missing account is not enqueued: reconciliation rebuilds the sets from the
// source of record, which no longer lists the item.
func (m *Manager) Unlink(ctx context.Context, accountID, itemID string, kind cache.ItemKind) (Outcome, error) {
	acct, err := m.accounts.Get(ctx, accountID)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return m.observe(kind, NoAccount), nil
	case err != nil:
		return 0, err
	}

	acct.Refs(kind).Remove(itemID)
	if err := m.accounts.Put(ctx, acct); err != nil {
		return 0, err
	}
	return m.observe(kind, Unlinked), nil
}

func (m *Manager) observe(kind cache.ItemKind, o Outcome) Outcome {
	metrics.LinkOutcomes.WithLabelValues(string(kind), o.String()).Inc()
	return o
}
