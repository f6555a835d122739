// Package admin provides the /admin/* control plane for state management,
// catalog reloads and request inspection.
package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
	"github.com/wondertwin-ai/ecoscan/pkg/store"
)

// StateStore is the interface a server must implement to support admin
// state management.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot() any
	// LoadState replaces the full state from a JSON body.
	LoadState(data []byte) error
	// Reset returns the server to its freshly started state.
	Reset(ctx context.Context) error
}

// CatalogReloader is optionally implemented by servers that can re-read
// their offer catalog.
type CatalogReloader interface {
	ReloadCatalog(ctx context.Context) (int, error)
}

// Handler provides the admin endpoints.
type Handler struct {
	state    StateStore
	reloader CatalogReloader
	mw       *appcore.Middleware
	clock    *store.Clock
}

// NewHandler creates a new admin handler. clock may be nil.
func NewHandler(state StateStore, mw *appcore.Middleware, clock *store.Clock) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
		clock: clock,
	}
}

// SetReloader sets the catalog reloader (optional).
func (h *Handler) SetReloader(r CatalogReloader) {
	h.reloader = r
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Get("/requests", h.handleGetRequests)
		r.Post("/catalog/reload", h.handleReloadCatalog)
		r.Post("/time/advance", h.handleTimeAdvance)
		r.Get("/time", h.handleGetTime)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.state.Reset(r.Context()); err != nil {
		appcore.Error(w, http.StatusInternalServerError, "reset failed: "+err.Error())
		return
	}
	h.mw.ReqLog.Clear()
	if h.clock != nil {
		h.clock.Reset()
	}
	appcore.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	appcore.JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		appcore.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(body); err != nil {
		appcore.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	appcore.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		appcore.Error(w, http.StatusNotImplemented, "catalog reload not configured")
		return
	}
	n, err := h.reloader.ReloadCatalog(r.Context())
	if err != nil {
		appcore.Error(w, http.StatusBadGateway, "reload failed: "+err.Error())
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{"status": "reloaded", "offers": n})
}

func (h *Handler) handleTimeAdvance(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		appcore.Error(w, http.StatusBadRequest, "simulated clock not configured")
		return
	}

	var req struct {
		Duration string `json:"duration"` // Go duration string, e.g., "24h", "30m"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	d, err := time.ParseDuration(req.Duration)
	if err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}

	h.clock.Advance(d)
	appcore.JSON(w, http.StatusOK, map[string]any{
		"status":    "advanced",
		"duration":  d.String(),
		"offset":    h.clock.Offset().String(),
		"simulated": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleGetTime(w http.ResponseWriter, r *http.Request) {
	if h.clock == nil {
		appcore.JSON(w, http.StatusOK, map[string]any{
			"real": time.Now().Format(time.RFC3339),
		})
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{
		"real":      time.Now().Format(time.RFC3339),
		"simulated": h.clock.Now().Format(time.RFC3339),
		"offset":    h.clock.Offset().String(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	appcore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
