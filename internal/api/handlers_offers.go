package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
)

// GetOffers handles GET /v1/offers. The body uses the same envelope as the
// scoring service's offers endpoint.
func (h *Handler) GetOffers(w http.ResponseWriter, r *http.Request) {
	st := h.tracker.State()
	appcore.JSON(w, http.StatusOK, scoring.OffersResponse{
		Success: true,
		Data: &scoring.OffersData{
			UserPoints:      st.TotalPoints,
			AvailableOffers: st.AvailableOffers,
			UpcomingOffers:  st.UpcomingOffers,
		},
	})
}

// ReplaceOffers handles PUT /v1/offers with a JSON array of offers.
func (h *Handler) ReplaceOffers(w http.ResponseWriter, r *http.Request) {
	var catalog []offers.Offer
	if err := json.NewDecoder(r.Body).Decode(&catalog); err != nil {
		appcore.Error(w, http.StatusBadRequest, "invalid JSON body: expected an array of offers")
		return
	}
	err := h.tracker.LoadCatalog(catalog)
	h.catalogReloaded("api", err)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, h.tracker.State())
}

// RefreshOffers handles POST /v1/offers/refresh by pulling the catalog from
// the scoring service.
func (h *Handler) RefreshOffers(w http.ResponseWriter, r *http.Request) {
	n, err := h.tracker.RefreshCatalog(r.Context())
	h.catalogReloaded("service", err)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{
		"offers": n,
		"state":  h.tracker.State(),
	})
}

// RedeemOffer handles POST /v1/offers/{id}/redeem. Redemption only checks
// eligibility; the balance is left as it is.
func (h *Handler) RedeemOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.tracker.Redeem(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	appcore.JSON(w, http.StatusOK, map[string]any{
		"status": "redeemed",
		"offer":  o,
	})
}

func (h *Handler) catalogReloaded(source string, err error) {
	if h.metrics != nil {
		h.metrics.CatalogReloaded(source, err)
	}
}
