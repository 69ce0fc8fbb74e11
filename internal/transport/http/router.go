// Package httptransport serves the daemon's ops endpoints: liveness with dependency
// checks, Prometheus metrics, and a read-only view of the moderation queue.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/sentinel"
)

const defaultCheckTimeout = 2 * time.Second

// CheckFunc reports whether one dependency is reachable.
type CheckFunc func(ctx context.Context) error

// RecordReader is the read side of the moderation store.
type RecordReader interface {
	FindBySubmission(ctx context.Context, submissionID id.SubmissionID) (*moderation.Record, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]moderation.Record, error)
}

// Handler serves the ops routes.
type Handler struct {
	gatherer     prometheus.Gatherer
	checks       map[string]CheckFunc
	records      RecordReader
	logger       *slog.Logger
	checkTimeout time.Duration
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCheck adds a named dependency to /healthz.
func WithCheck(name string, fn CheckFunc) Option {
	return func(h *Handler) {
		if fn != nil {
			h.checks[name] = fn
		}
	}
}

// WithRecords exposes the moderation queue under /moderation.
func WithRecords(r RecordReader) Option {
	return func(h *Handler) {
		h.records = r
	}
}

func WithCheckTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.checkTimeout = d
		}
	}
}

func NewHandler(gatherer prometheus.Gatherer, opts ...Option) *Handler {
	h := &Handler{
		gatherer:     gatherer,
		checks:       make(map[string]CheckFunc),
		checkTimeout: defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// NewRouter wires the ops endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	if h.records != nil {
		r.Get("/moderation/submissions/{submissionID}", h.handleGetRecord)
		r.Get("/moderation/users/{userID}", h.handleListRecords)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
		err := h.checks[name](checkCtx)
		cancel()
		if err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	submissionID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.records.FindBySubmission(ctx, submissionID)
	if err != nil {
		h.writeStoreError(ctx, w, err, "no moderation record for submission")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

type listResponse struct {
	Records []moderation.Record `json:"records"`
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	records, err := h.records.ListByUser(ctx, userID)
	if err != nil {
		h.writeStoreError(ctx, w, err, "")
		return
	}
	if records == nil {
		records = []moderation.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Records: records})
}

func (h *Handler) writeStoreError(ctx context.Context, w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, notFound))
	case errors.Is(err, sentinel.ErrUnavailable):
		h.logger.WarnContext(ctx, "moderation store unavailable", "error", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "moderation store unavailable"))
	default:
		h.logger.ErrorContext(ctx, "moderation store read failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read failed"))
	}
}
