package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sloghttp "github.com/samber/slog-http"

	"github.com/gyaneshwarpardhi/cachesync/internal/config"
	"github.com/gyaneshwarpardhi/cachesync/internal/engine"
	"github.com/gyaneshwarpardhi/cachesync/internal/event"
	"github.com/gyaneshwarpardhi/cachesync/internal/metrics"
)

const maxBodyBytes = 4 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	ready  func(context.Context) error
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. ready reports backend
// health for /readyz and may be nil.
func New(eng *engine.Engine, loader *config.Loader, ready func(context.Context) error, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{eng: eng, loader: loader, ready: ready, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.ingestBatch)
	h.mux.HandleFunc("GET /v1/config", h.showConfig)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return sloghttp.New(logger)(sloghttp.Recovery(h.mux))
}

// POST /v1/events: synchronous single-event ingestion. Accepts the webhook
// body as published or wrapped in an SNS notification.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return
	}
	ev, err := event.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stamp(ev, time.Now())

	res, err := h.eng.ProcessSync(r.Context(), ev)
	if err != nil {
		writeIngestError(w, ev, err)
		return
	}
	writeJSON(w, statusFor(res), res)
}

// statusFor maps a dispatch outcome to a response code. Storage and queue
// failures are upstream failures; the caller should redeliver.
func statusFor(res *engine.EventResult) int {
	switch res.ErrorKind {
	case "":
		return http.StatusOK
	case engine.KindValidation:
		return http.StatusUnprocessableEntity
	case engine.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// POST /v1/events/batch: async batch ingestion.
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	maxBatch := h.loader.Config().HTTP.MaxBatch
	if len(raw) > maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(raw), maxBatch))
		return
	}

	now := time.Now()
	jobID := uuid.New().String()
	queued, malformed := 0, 0
	for _, msg := range raw {
		ev, err := event.Decode(msg)
		if err != nil {
			malformed++
			continue
		}
		stamp(ev, now)
		if h.eng.ProcessAsync(ev) {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":    jobID,
		"total":     len(raw),
		"queued":    queued,
		"malformed": malformed,
		"rejected":  len(raw) - queued - malformed,
	})
}

func stamp(ev *event.Event, now time.Time) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.ReceivedAt = now
}

// GET /v1/config: effective store, queue and engine settings.
func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.loader.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": cfg.Version,
		"engine":  cfg.Engine,
		"store": map[string]interface{}{
			"driver": cfg.Store.Driver,
			"tables": cfg.Store.Tables,
			"ttl": map[string]string{
				"account":    cfg.Store.TTL.Account.String(),
				"request":    cfg.Store.TTL.Request.String(),
				"loan_grace": cfg.Store.TTL.LoanGrace.String(),
			},
		},
		"queue": map[string]string{
			"driver": cfg.Queue.Driver,
			"name":   cfg.Queue.Name,
			"url":    cfg.Queue.URL,
		},
	})
}

// POST /v1/config/reload: re-read the config file. Only the log level takes
// effect without a restart.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":  true,
		"log_level": cfg.Log.Level,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if event queue >80% full or a backend is unreachable.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"in_flight":         h.eng.InFlight(),
	})
}
