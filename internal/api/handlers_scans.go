package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
	"github.com/wondertwin-ai/ecoscan/internal/session"
	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
)

type scanResponse struct {
	Record history.Record `json:"record"`
	State  any            `json:"state"`
}

// RecognizeImage handles POST /v1/scans/recognize with a multipart "image"
// field. Recognition does not change the session.
func (h *Handler) RecognizeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	file, hdr, err := r.FormFile("image")
	if err != nil {
		appcore.Error(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	rec, err := h.tracker.Recognize(r.Context(), hdr.Filename, file)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	appcore.JSON(w, http.StatusOK, scoring.ImageRecognitionResponse{Success: true, Data: rec})
}

// ScoreItem handles POST /v1/scans/score: the item is scored by the service
// and the result credited to the session.
func (h *Handler) ScoreItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		scoring.CarbonScoreRequest
		Recognition *scoring.Recognition `json:"recognition,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.tracker.Score(r.Context(), req.CarbonScoreRequest, req.Recognition)
	if err != nil {
		h.writeApplyError(w, r, rec, err, http.StatusBadGateway)
		return
	}
	appcore.JSON(w, http.StatusOK, scanResponse{Record: rec, State: h.tracker.State()})
}

// ApplyScan handles POST /v1/scans with a score the client already obtained.
func (h *Handler) ApplyScan(w http.ResponseWriter, r *http.Request) {
	var scan session.Scan
	if err := json.NewDecoder(r.Body).Decode(&scan); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rec, err := h.tracker.ApplyScore(r.Context(), scan)
	if err != nil {
		h.writeApplyError(w, r, rec, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, scanResponse{Record: rec, State: h.tracker.State()})
}

// writeApplyError reports a failed history save as 500 even though the
// totals were credited; rec.ID is only set once the credit went through.
func (h *Handler) writeApplyError(w http.ResponseWriter, r *http.Request, rec history.Record, err error, fallback int) {
	if rec.ID != "" {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	h.writeError(w, r, err, fallback)
}

// ListHistory handles GET /v1/history?limit=.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", history.DefaultListLimit)
	if err != nil {
		appcore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.tracker.History(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{
		"scans": recs,
		"count": len(recs),
	})
}

// GetProgression handles GET /v1/history/progression?n=.
func (h *Handler) GetProgression(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", h.progression)
	if err != nil {
		appcore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{
		"samples": h.tracker.Progression(n),
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}
