// Package httpapi serves the local status surface: the current snapshot,
// the pending queue, manual drains and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/roach88/stocksync/internal/engine"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/status"
)

// Drainer runs and describes drain passes.
type Drainer interface {
	Drain(ctx context.Context) (engine.Report, error)
	State() engine.State
	LastReport() engine.Report
}

// Reporter provides status snapshots.
type Reporter interface {
	Latest() status.Snapshot
	Refresh(ctx context.Context) status.Snapshot
}

// Queue lists queued and dead-lettered records.
type Queue interface {
	ListPending(ctx context.Context) ([]movement.Record, error)
	ListDeadLetters(ctx context.Context) ([]movement.DeadLetter, error)
}

// Params wires the router to the running components.
type Params struct {
	Drainer  Drainer
	Reporter Reporter
	Queue    Queue
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	// RequestTimeout bounds every request, drains included. Zero means 30s.
	RequestTimeout time.Duration
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	status.Snapshot
	State     engine.State   `json:"state"`
	LastDrain *engine.Report `json:"last_drain,omitempty"`
}

// DrainResponse is the body of POST /drain.
type DrainResponse struct {
	engine.Report
	Error string `json:"error,omitempty"`
}

type handler struct {
	Params
}

// NewRouter builds the chi router.
func NewRouter(p Params) http.Handler {
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 30 * time.Second
	}
	h := &handler{Params: p}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(p.RequestTimeout))
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", h.getStatus)
	r.Get("/pending", h.getPending)
	r.Get("/deadletters", h.getDeadLetters)
	r.Post("/drain", h.postDrain)
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (h *handler) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.Reporter.Latest()
	if snap.At.IsZero() {
		snap = h.Reporter.Refresh(r.Context())
	}
	resp := StatusResponse{Snapshot: snap, State: h.Drainer.State()}
	if last := h.Drainer.LastReport(); last.Pass != 0 {
		resp.LastDrain = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getPending(w http.ResponseWriter, r *http.Request) {
	records, err := h.Queue.ListPending(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("list pending")
		problem(w, http.StatusInternalServerError, "Queue Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) getDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.Queue.ListDeadLetters(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("list dead letters")
		problem(w, http.StatusInternalServerError, "Queue Unavailable", err.Error())
		return
	}
	if letters == nil {
		letters = []movement.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, letters)
}

func (h *handler) postDrain(w http.ResponseWriter, r *http.Request) {
	report, err := h.Drainer.Drain(r.Context())
	switch {
	case err != nil:
		h.Logger.Error().Err(err).Msg("manual drain")
		problem(w, http.StatusInternalServerError, "Drain Failed", err.Error())
	case report.Skipped:
		problem(w, http.StatusServiceUnavailable, "Offline", "connectivity monitor reports offline; nothing was sent")
	case report.Busy:
		problem(w, http.StatusConflict, "Drain In Progress", "another drain pass is running")
	default:
		resp := DrainResponse{Report: report}
		if report.Err != nil {
			resp.Error = report.Err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("http request")
	})
}
