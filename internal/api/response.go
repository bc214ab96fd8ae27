package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/cachesync/internal/engine"
	"github.com/gyaneshwarpardhi/cachesync/internal/event"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the body for requests that never produced an engine
// result. Once an event is decoded its id and kind are echoed back so the
// publisher can match the rejection to its message.
type errorResponse struct {
	Error   string     `json:"error"`
	Status  int        `json:"status"`
	EventID string     `json:"event_id,omitempty"`
	Kind    event.Kind `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Status: status})
}

// writeIngestError reports a ProcessSync failure. Saturation asks the caller
// to back off; a caller that disconnected is reported apart from overload.
func writeIngestError(w http.ResponseWriter, ev *event.Event, err error) {
	status := ingestStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Status: status, EventID: ev.ID, Kind: ev.Kind})
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrTimeout):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
