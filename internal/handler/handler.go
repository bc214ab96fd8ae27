// Package handler applies one event to the cache: the item record mutation and
// the account reference update run concurrently and are joined.
package handler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/link"
)

// Result is the outcome of a successfully handled event.
type Result struct {
	ItemKind  cache.ItemKind `json:"item_kind"`
	ItemID    string         `json:"item_id"`
	AccountID string         `json:"account_id"`
	Link      link.Outcome   `json:"-"`
	LinkState string         `json:"link"`
	Message   string         `json:"message"`
}

// Error reports which of the two sub-operations failed. A side whose error is
// nil was applied and is not rolled back.
type Error struct {
	ItemKind cache.ItemKind
	ItemID   string
	Item     error
	Link     error
}

func (e *Error) Error() string {
	var parts []string
	if e.Item != nil {
		parts = append(parts, fmt.Sprintf("item: %v", e.Item))
	}
	if e.Link != nil {
		parts = append(parts, fmt.Sprintf("account link: %v", e.Link))
	}
	return fmt.Sprintf("%s %s: %s", e.ItemKind, e.ItemID, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Item != nil {
		errs = append(errs, e.Item)
	}
	if e.Link != nil {
		errs = append(errs, e.Link)
	}
	return errs
}

// Partial reports whether exactly one side failed, leaving the other applied.
func (e *Error) Partial() bool { return (e.Item == nil) != (e.Link == nil) }

// FailedOps names the failed sides: "item", "link" or "item+link".
func (e *Error) FailedOps() string {
	switch {
	case e.Item != nil && e.Link != nil:
		return "item+link"
	case e.Item != nil:
		return "item"
	default:
		return "link"
	}
}

// Items handles the create, update and terminal events of one item kind.
type Items[T cache.Item[T]] struct {
	kind  cache.ItemKind
	label string
	store cache.Store[T]
	links *link.Manager
}

// Loans handles loan events.
type Loans = Items[cache.Loan]

// Requests handles request events.
type Requests = Items[cache.Request]

func NewLoans(store cache.Store[cache.Loan], links *link.Manager) *Loans {
	return &Loans{kind: cache.KindLoan, label: "Loan", store: store, links: links}
}

func NewRequests(store cache.Store[cache.Request], links *link.Manager) *Requests {
	return &Requests{kind: cache.KindRequest, label: "Request", store: store, links: links}
}

// Created writes a new item and links it to its account.
func (h *Items[T]) Created(ctx context.Context, item T) (*Result, error) {
	return h.upsert(ctx, item, "created in")
}

// Updated overwrites an item and makes sure its account references it.
func (h *Items[T]) Updated(ctx context.Context, item T) (*Result, error) {
	return h.upsert(ctx, item, "updated in")
}

// Removed deletes an item and unlinks it from its account. Used for returned
// loans and closed requests.
func (h *Items[T]) Removed(ctx context.Context, item T) (*Result, error) {
	id, owner := item.RecordID(), item.OwnerID()
	return h.join(ctx, id, owner, "deleted from",
		func(ctx context.Context) error { return h.store.Delete(ctx, id) },
		func(ctx context.Context) (link.Outcome, error) { return h.links.Unlink(ctx, owner, id, h.kind) },
	)
}

func (h *Items[T]) upsert(ctx context.Context, item T, verb string) (*Result, error) {
	id, owner := item.RecordID(), item.OwnerID()
	return h.join(ctx, id, owner, verb,
		func(ctx context.Context) error { return h.store.Put(ctx, item) },
		func(ctx context.Context) (link.Outcome, error) { return h.links.Link(ctx, owner, id, h.kind) },
	)
}

// join runs the item mutation and the account update concurrently and waits
// for both before reporting. A panic on either side is re-raised on the
// caller's goroutine once both have finished.
func (h *Items[T]) join(
	ctx context.Context,
	id, owner, verb string,
	mutate func(context.Context) error,
	relink func(context.Context) (link.Outcome, error),
) (*Result, error) {
	var (
		wg      sync.WaitGroup
		itemErr error
		linkErr error
		outcome link.Outcome
		panics  [2]any
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() { panics[0] = recover() }()
		itemErr = mutate(ctx)
	}()
	go func() {
		defer wg.Done()
		defer func() { panics[1] = recover() }()
		outcome, linkErr = relink(ctx)
	}()
	wg.Wait()
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}

	if itemErr != nil || linkErr != nil {
		return nil, &Error{ItemKind: h.kind, ItemID: id, Item: itemErr, Link: linkErr}
	}

	msg := fmt.Sprintf("%s %s successfully %s cache", h.label, id, verb)
	if outcome == link.Deferred {
		msg += fmt.Sprintf("; account %s queued for reconciliation", owner)
	}
	return &Result{
		ItemKind:  h.kind,
		ItemID:    id,
		AccountID: owner,
		Link:      outcome,
		LinkState: outcome.String(),
		Message:   msg,
	}, nil
}
