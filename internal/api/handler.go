// Package api exposes claim assessment over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/score"
	"github.com/ppiankov/claimlink/internal/store"
)

const maxSubmissionBytes = 1 << 20

// Assessor assesses one claim submission
type Assessor interface {
	Assess(ctx context.Context, sub *model.Submission) (*model.Report, error)
}

// Handler wires claim endpoints to the assessment pipeline and store
type Handler struct {
	assessor Assessor
	store    store.Store
	logger   *slog.Logger
	timeout  time.Duration
	auth     *TokenValidator
	gatherer prometheus.Gatherer
}

// Option configures a Handler
type Option func(*Handler)

// WithAuth requires a valid bearer token on /v1 routes
func WithAuth(v *TokenValidator) Option {
	return func(h *Handler) { h.auth = v }
}

// WithGatherer exposes gatherer on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithTimeout bounds each request
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New constructs a handler with its dependencies
func New(assessor Assessor, st store.Store, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		assessor: assessor,
		store:    st,
		logger:   logger,
		timeout:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the complete HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(h.timeout))
		if h.auth != nil {
			r.Use(RequireAuth(h.auth, h.logger))
		}
		h.Register(r)
	})
	return r
}

// Register mounts claim endpoints on r
func (h *Handler) Register(r chi.Router) {
	r.Post("/claims/assess", h.handleAssess)
	r.Get("/claims", h.handleList)
	r.Get("/claims/{id}", h.handleGet)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAssess handles POST /v1/claims/assess
func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := time.Now()

	var sub model.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		h.logger.WarnContext(ctx, "invalid submission", "request_id", requestID, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed claim submission")
		return
	}
	if sub.Personal.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "personal.name is required")
		return
	}

	report, err := h.assessor.Assess(ctx, &sub)
	if err != nil {
		var cfgErr *score.ConfigurationError
		if errors.As(err, &cfgErr) {
			h.logger.ErrorContext(ctx, "claim could not be scored",
				"request_id", requestID,
				"reference", sub.Reference,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "configuration_error",
				Message: err.Error(),
				Status:  model.StatusToBeReviewed,
			})
			return
		}
		h.logger.ErrorContext(ctx, "claim assessment failed",
			"request_id", requestID,
			"reference", sub.Reference,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "claim assessment failed")
		return
	}

	h.logger.InfoContext(ctx, "claim assessed",
		"request_id", requestID,
		"reference", report.Reference,
		"status", report.Verdict.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, publicReport(report))
}

// publicReport drops extraction error details, which can describe the
// server's filesystem or network, from a report returned to callers
func publicReport(report *model.Report) *model.Report {
	out := *report
	out.Extraction = make([]model.ExtractionOutcome, len(report.Extraction))
	for i, o := range report.Extraction {
		o.Error = ""
		out.Extraction[i] = o
	}
	return &out
}

// handleGet handles GET /v1/claims/{id}; id may be a claim ID or reference number
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "not_found", "claim store disabled")
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		rec, err = h.store.GetByReference(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "claim not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "claim lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "claim lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleList handles GET /v1/claims?status=&limit=
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []*model.ClaimRecord{})
		return
	}
	ctx := r.Context()

	filter := store.Filter{Status: model.Status(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	recs, err := h.store.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "claim list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "claim list failed")
		return
	}
	if recs == nil {
		recs = []*model.ClaimRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
