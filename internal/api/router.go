// Package api serves the ecoscan session over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/ecoscan/internal/catalog"
	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/metrics"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
	"github.com/wondertwin-ai/ecoscan/internal/session"
	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
)

// maxUploadBytes bounds the multipart body of a recognition upload.
const maxUploadBytes = 10 << 20

// Options configures a Handler. Tracker and Middleware are required.
type Options struct {
	Tracker    *session.Tracker
	Middleware *appcore.Middleware
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// ProgressionPoints is the default n of GET /v1/history/progression.
	ProgressionPoints int
}

// Handler holds all API handler state.
type Handler struct {
	tracker     *session.Tracker
	mw          *appcore.Middleware
	metrics     *metrics.Metrics
	logger      *slog.Logger
	progression int
}

// NewHandler creates a new API handler. When metrics are configured the store
// gauges follow every state change.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		tracker:     opts.Tracker,
		mw:          opts.Middleware,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		progression: opts.ProgressionPoints,
	}
	if h.logger == nil {
		h.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if h.progression <= 0 {
		h.progression = history.DefaultProgressionPoints
	}
	if h.metrics != nil {
		h.tracker.Store().Subscribe(h.metrics.Observe)
		h.metrics.Observe(h.tracker.State())
	}
	return h
}

// Routes mounts the API endpoints.
func (h *Handler) Routes(r chi.Router) {
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if h.metrics != nil {
			r.Use(h.metrics.Middleware)
		}
		r.Use(h.mw.RateLimit)

		// Session state
		r.Get("/state", h.GetState)
		r.Post("/points", h.AddPoints)
		r.Post("/carbon", h.UpdateCarbonScore)
		r.Post("/reset", h.Reset)
		r.Get("/impact", h.GetImpact)

		// Offers
		r.Get("/offers", h.GetOffers)
		r.Put("/offers", h.ReplaceOffers)
		r.Post("/offers/refresh", h.RefreshOffers)
		r.Post("/offers/{id}/redeem", h.RedeemOffer)

		// Scans
		r.Post("/scans/recognize", h.RecognizeImage)
		r.Post("/scans/score", h.ScoreItem)
		r.Post("/scans", h.ApplyScan)

		// History
		r.Get("/history", h.ListHistory)
		r.Get("/history/progression", h.GetProgression)
	})
}

// writeError maps domain errors to status codes. fallback is used for errors
// no sentinel matches.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	status := fallback
	var statusErr *scoring.StatusError
	switch {
	case errors.Is(err, offers.ErrInvalidInput), errors.Is(err, catalog.ErrInvalidCatalog),
		errors.Is(err, scoring.ErrInvalidRequest):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrUnknownOffer):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotEligible):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoScorer):
		status = http.StatusServiceUnavailable
	case errors.As(err, &statusErr), errors.Is(err, scoring.ErrRejected),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	appcore.Error(w, status, err.Error())
}
