package api

import (
	"encoding/json"
	"net/http"

	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
)

// GetState handles GET /v1/state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	appcore.JSON(w, http.StatusOK, h.tracker.State())
}

// AddPoints handles POST /v1/points.
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points *int `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Points == nil {
		appcore.Error(w, http.StatusBadRequest, "points is required")
		return
	}
	if err := h.tracker.AddPoints(*req.Points); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, h.tracker.State())
}

// UpdateCarbonScore handles POST /v1/carbon.
func (h *Handler) UpdateCarbonScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score *float64 `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Score == nil {
		appcore.Error(w, http.StatusBadRequest, "score is required")
		return
	}
	if err := h.tracker.UpdateCarbonScore(*req.Score); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, h.tracker.State())
}

// Reset handles POST /v1/reset. The catalog is cleared along with the totals.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.Reset(r.Context()); err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, h.tracker.State())
}

// GetImpact handles GET /v1/impact.
func (h *Handler) GetImpact(w http.ResponseWriter, r *http.Request) {
	appcore.JSON(w, http.StatusOK, h.tracker.Impact())
}
