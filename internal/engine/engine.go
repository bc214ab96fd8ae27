package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/config"
	"github.com/gyaneshwarpardhi/cachesync/internal/event"
	"github.com/gyaneshwarpardhi/cachesync/internal/handler"
	"github.com/gyaneshwarpardhi/cachesync/internal/metrics"
)

// Result is the outcome of a successfully dispatched event.
type Result = handler.Result

// EventResult is the outcome of processing a single event through the
// ingestion queue.
type EventResult struct {
	EventID    string     `json:"event_id"`
	Kind       event.Kind `json:"kind"`
	DurationMs int64      `json:"duration_ms"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  ErrorKind  `json:"error_kind,omitempty"`
	Partial    bool       `json:"partial,omitempty"`
	err        error
}

// Err returns the dispatch error, if any.
func (r *EventResult) Err() error { return r.err }

// Engine dispatches events to the loan and request handlers. It holds no
// state across events; the worker pool only bounds ingestion concurrency.
type Engine struct {
	loans     *handler.Loans
	requests  *handler.Requests
	eventPool *workerPool[*eventWork]
	conf      config.EngineConf
	logger    *slog.Logger
}

type eventWork struct {
	ev      *event.Event
	resultC chan *EventResult
}

// New creates an Engine using conf and starts the ingestion worker pool.
func New(ctx context.Context, loans *handler.Loans, requests *handler.Requests, conf config.EngineConf, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		loans:    loans,
		requests: requests,
		conf:     conf,
		logger:   logger,
	}
	e.eventPool = newWorkerPool(ctx, conf.EventWorkers, conf.QueueDepth, e.work, e.recovered)
	return e
}

func (e *Engine) work(ctx context.Context, w *eventWork) {
	res := e.process(ctx, w.ev)
	if w.resultC != nil {
		w.resultC <- res
	}
}

// recovered reports a panicking event as an internal failure so a waiting
// ProcessSync caller gets an answer instead of a timeout.
func (e *Engine) recovered(w *eventWork, r any) {
	err := &SyncError{
		Kind:      KindInternal,
		EventKind: w.ev.Kind,
		ItemID:    w.ev.ItemID(),
		Op:        "dispatch",
		Err:       fmt.Errorf("%w: %v", ErrInternal, r),
	}
	metrics.EventsDispatched.WithLabelValues(metricKind(w.ev.Kind), string(KindInternal)).Inc()
	e.logger.Error("event processing panicked", "event_id", w.ev.ID, "kind", w.ev.Kind, "panic", r)
	if w.resultC != nil {
		w.resultC <- &EventResult{
			EventID:   w.ev.ID,
			Kind:      w.ev.Kind,
			Error:     err.Error(),
			ErrorKind: KindInternal,
			err:       err,
		}
	}
}

// Dispatch applies ev to the cache. Unsupported kinds and missing payloads
// fail before any store or queue call.
func (e *Engine) Dispatch(ctx context.Context, ev *event.Event) (*Result, error) {
	start := time.Now()
	res, err := e.dispatch(ctx, ev)
	elapsed := time.Since(start)
	metrics.DispatchDuration.Observe(float64(elapsed.Milliseconds()))

	if err != nil {
		var se *SyncError
		if !errors.As(err, &se) {
			se = classify(ev, err)
			err = se
		}
		metrics.EventsDispatched.WithLabelValues(metricKind(ev.Kind), string(se.Kind)).Inc()
		e.logger.Warn("event dispatch failed",
			"event_id", ev.ID, "kind", ev.Kind, "item_id", se.ItemID,
			"error_kind", se.Kind, "op", se.Op, "partial", se.Partial,
			"duration", elapsed, "err", se.Err)
		return nil, err
	}

	metrics.EventsDispatched.WithLabelValues(metricKind(ev.Kind), "success").Inc()
	e.logger.Info("event dispatched",
		"event_id", ev.ID, "kind", ev.Kind, "item_id", res.ItemID,
		"account_id", res.AccountID, "link", res.LinkState, "duration", elapsed)
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, ev *event.Event) (*Result, error) {
	switch ev.Kind {
	case event.LoanCreated:
		return withLoan(ctx, ev, e.loans.Created)
	case event.LoanUpdated, event.LoanRenewed, event.LoanDueDate:
		return withLoan(ctx, ev, e.loans.Updated)
	case event.LoanReturned:
		return withLoan(ctx, ev, e.loans.Removed)
	case event.RequestCreated:
		return withRequest(ctx, ev, e.requests.Created)
	case event.RequestUpdated:
		return withRequest(ctx, ev, e.requests.Updated)
	case event.RequestClosed:
		return withRequest(ctx, ev, e.requests.Removed)
	default:
		return nil, validationError(ev, fmt.Errorf("%w: %q", ErrUnsupportedEventKind, ev.Kind))
	}
}

func withLoan(ctx context.Context, ev *event.Event, fn func(context.Context, cache.Loan) (*Result, error)) (*Result, error) {
	if ev.Loan == nil || ev.Loan.ID == "" || ev.Loan.AccountID == "" {
		return nil, validationError(ev, fmt.Errorf("%w: %s needs item_loan with loan_id and user_id", ErrMissingPayload, ev.Kind))
	}
	res, err := fn(ctx, *ev.Loan)
	if err != nil {
		return nil, classify(ev, err)
	}
	return res, nil
}

func withRequest(ctx context.Context, ev *event.Event, fn func(context.Context, cache.Request) (*Result, error)) (*Result, error) {
	if ev.Request == nil || ev.Request.ID == "" || ev.Request.AccountID == "" {
		return nil, validationError(ev, fmt.Errorf("%w: %s needs user_request with request_id and user_primary_id", ErrMissingPayload, ev.Kind))
	}
	res, err := fn(ctx, *ev.Request)
	if err != nil {
		return nil, classify(ev, err)
	}
	return res, nil
}

// metricKind keeps label cardinality bounded when clients send junk kinds.
func metricKind(k event.Kind) string {
	switch k {
	case event.LoanCreated, event.LoanUpdated, event.LoanRenewed, event.LoanDueDate, event.LoanReturned,
		event.RequestCreated, event.RequestUpdated, event.RequestClosed:
		return string(k)
	}
	return "unsupported"
}

// ProcessSync processes an event on the worker pool and waits for the result.
// It fails with ErrQueueFull when the pool is saturated and ErrTimeout when
// the result does not arrive within the configured event timeout.
func (e *Engine) ProcessSync(ctx context.Context, ev *event.Event) (*EventResult, error) {
	resultC := make(chan *EventResult, 1)
	w := &eventWork{ev: ev, resultC: resultC}

	if !e.eventPool.Submit(w) {
		metrics.EventsDropped.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}
	metrics.EventsEnqueued.Inc()

	timeout := e.conf.EventTimeout()
	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues an event for background processing. Returns false if the queue is full.
func (e *Engine) ProcessAsync(ev *event.Event) bool {
	if !e.eventPool.Submit(&eventWork{ev: ev}) {
		metrics.EventsDropped.Inc()
		return false
	}
	metrics.EventsEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0 to 1).
func (e *Engine) QueueUtilization() float64 {
	if e.eventPool.QueueCap() == 0 {
		return 0
	}
	return float64(e.eventPool.QueueLen()) / float64(e.eventPool.QueueCap())
}

func (e *Engine) process(ctx context.Context, ev *event.Event) *EventResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.conf.EventTimeout())
	defer cancel()

	res, err := e.Dispatch(ctx, ev)
	out := &EventResult{
		EventID:    ev.ID,
		Kind:       ev.Kind,
		Result:     res,
		DurationMs: time.Since(start).Milliseconds(),
		err:        err,
	}
	var se *SyncError
	if errors.As(err, &se) {
		out.Error = se.Error()
		out.ErrorKind = se.Kind
		out.Partial = se.Partial
	}
	return out
}

// InFlight returns the number of events being processed right now.
func (e *Engine) InFlight() int64 { return e.eventPool.InFlight() }

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.eventPool.Drain()
}
