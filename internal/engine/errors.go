package engine

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/cachesync/internal/event"
	"github.com/gyaneshwarpardhi/cachesync/internal/handler"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
)

var (
	// ErrUnsupportedEventKind is returned for kinds the engine has no handler for.
	ErrUnsupportedEventKind = errors.New("unsupported event kind")
	// ErrMissingPayload is returned when the item payload matching the kind is
	// absent or lacks its id or account id.
	ErrMissingPayload = errors.New("missing item payload")

	// ErrQueueFull and ErrTimeout are ingestion errors from ProcessSync.
	ErrQueueFull = errors.New("event queue full")
	ErrTimeout   = errors.New("event processing timeout")

	// ErrInternal marks an event whose processing panicked.
	ErrInternal = errors.New("internal error")
)

// ErrorKind classifies a dispatch failure.
type ErrorKind string

const (
	// KindValidation: the event was rejected before any side effect.
	KindValidation ErrorKind = "validation"
	// KindStorage: a record store operation failed.
	KindStorage ErrorKind = "storage"
	// KindQueue: publishing to the reconciliation queue failed.
	KindQueue ErrorKind = "queue"
	// KindInternal: processing panicked; nothing is known about side effects.
	KindInternal ErrorKind = "internal"
)

// SyncError is returned by Dispatch. It carries enough context to retry the
// event safely: every sub-operation is idempotent, so redelivery converges.
type SyncError struct {
	Kind      ErrorKind
	EventKind event.Kind
	ItemID    string
	// Op names the failed sub-operation(s): "validate", "item", "link",
	// "item+link" or "dispatch".
	Op string
	// Partial is set when one side failed and the other was applied.
	Partial bool
	Err     error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s event for %q failed (%s, op=%s", e.EventKind, e.ItemID, e.Kind, e.Op)
	if e.Partial {
		msg += ", partially applied"
	}
	return msg + "): " + e.Err.Error()
}

func (e *SyncError) Unwrap() error { return e.Err }

func validationError(ev *event.Event, err error) *SyncError {
	return &SyncError{Kind: KindValidation, EventKind: ev.Kind, ItemID: ev.ItemID(), Op: "validate", Err: err}
}

// classify turns a handler failure into a SyncError. A queue failure on the
// link side takes precedence since it is the one the operator acts on.
func classify(ev *event.Event, err error) *SyncError {
	se := &SyncError{Kind: KindStorage, EventKind: ev.Kind, ItemID: ev.ItemID(), Op: "item+link", Err: err}
	var he *handler.Error
	if errors.As(err, &he) {
		se.ItemID = he.ItemID
		se.Op = he.FailedOps()
		se.Partial = he.Partial()
	}
	var qe *queue.Error
	if errors.As(err, &qe) {
		se.Kind = KindQueue
	}
	return se
}
