package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/api"
	"github.com/wondertwin-ai/ecoscan/internal/catalog"
	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/impact"
	"github.com/wondertwin-ai/ecoscan/internal/metrics"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
	"github.com/wondertwin-ai/ecoscan/internal/session"
	"github.com/wondertwin-ai/ecoscan/pkg/admin"
	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
	"github.com/wondertwin-ai/ecoscan/pkg/store"
	"github.com/wondertwin-ai/ecoscan/pkg/testutil"
)

// fakeService mimics the scoring service. Item names "reject" and "boom"
// trigger an envelope rejection and a 500.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /carbon-score", func(w http.ResponseWriter, r *http.Request) {
		var req scoring.CarbonScoreRequest
		json.NewDecoder(r.Body).Decode(&req)
		switch req.Name {
		case "reject":
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "unrecognized item"})
		case "boom":
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "scoring crashed"})
		default:
			writeJSON(w, http.StatusOK, scoring.CarbonScoreResponse{Success: true, Data: &scoring.CarbonScore{
				BaseScore:   2,
				Adjustments: scoring.Adjustments{Material: 1, Condition: 0.5},
				FinalScore:  3.5,
				EcoPoints:   25,
			}})
		}
	})

	mux.HandleFunc("POST /recognize-image", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("image"); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "no image"})
			return
		}
		writeJSON(w, http.StatusOK, scoring.ImageRecognitionResponse{Success: true, Data: &scoring.Recognition{
			Items:      []string{"t-shirt"},
			Confidence: 0.87,
		}})
	})

	mux.HandleFunc("GET /offers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, scoring.OffersResponse{Success: true, Data: &scoring.OffersData{
			AvailableOffers: []offers.Offer{{ID: "a", Title: "Free tote", PointsRequired: 0, Type: offers.KindFreebie, Tier: offers.TierBasic}},
			UpcomingOffers: []offers.UpcomingOffer{
				{Offer: offers.Offer{ID: "b", Title: "10% off", PointsRequired: 40, Type: offers.KindDiscount, Tier: offers.TierEco}, PointsNeeded: 40},
			},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	tc      *testutil.AppClient
	ac      *testutil.AdminClient
	tracker *session.Tracker
	metrics *metrics.Metrics
}

// setup builds a server over the default catalog. An empty serviceURL leaves
// the tracker without a scoring client.
func setup(t *testing.T, serviceURL string, cfg *appcore.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &appcore.Config{Name: "ecoscan-test"}
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app := appcore.New(cfg, logger)
	m := metrics.New()

	clock := store.NewClock()
	clock.Freeze(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))

	opts := session.Options{Clock: clock, Recorder: m, Logger: logger}
	if serviceURL != "" {
		opts.Scorer = scoring.New(scoring.Options{BaseURL: serviceURL, Timeout: 5 * time.Second})
	}
	tracker := session.New(opts)
	if err := tracker.LoadCatalog(catalog.Default()); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	h := api.NewHandler(api.Options{Tracker: tracker, Middleware: app.Middleware(), Metrics: m, Logger: logger})
	h.Routes(app.Router)

	source := func(ctx context.Context) ([]offers.Offer, error) { return catalog.Default(), nil }
	state := api.NewAdminState(tracker, source, m, logger)
	adminHandler := admin.NewHandler(state, app.Middleware(), clock)
	adminHandler.SetReloader(state)
	adminHandler.Routes(app.Router)

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	tc := testutil.NewAppClient(t, srv)
	return &testEnv{tc: tc, ac: testutil.NewAdminClient(tc), tracker: tracker, metrics: m}
}

func decodeState(r *testutil.Response) offers.AppState {
	var st offers.AppState
	r.JSON(&st)
	return st
}

// --- Session state ---

func TestGetStateStartsWithEverythingUpcoming(t *testing.T) {
	env := setup(t, "", nil)
	st := decodeState(env.tc.Get("/v1/state").AssertStatus(200))
	if st.TotalPoints != 0 || len(st.AvailableOffers) != 0 || len(st.UpcomingOffers) != 10 {
		t.Errorf("unexpected initial state: %+v", st)
	}
	if st.UpcomingOffers[0].ID != "1" || st.UpcomingOffers[0].PointsNeeded != 20 {
		t.Errorf("expected cheapest offer first, got %+v", st.UpcomingOffers[0])
	}
}

func TestAddPoints(t *testing.T) {
	env := setup(t, "", nil)
	st := decodeState(env.tc.Post("/v1/points", map[string]int{"points": 25}).AssertStatus(200))

	if st.TotalPoints != 25 {
		t.Errorf("expected 25 points, got %d", st.TotalPoints)
	}
	if len(st.AvailableOffers) != 1 || st.AvailableOffers[0].ID != "1" {
		t.Errorf("expected offer 1 available, got %+v", st.AvailableOffers)
	}
	if len(st.UpcomingOffers) != 9 || st.UpcomingOffers[0].ID != "3" || st.UpcomingOffers[0].PointsNeeded != 5 {
		t.Errorf("expected offer 3 next with 5 needed, got %+v", st.UpcomingOffers)
	}
}

func TestAddPointsRejectsNegative(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 10}).AssertStatus(200)

	env.tc.Post("/v1/points", map[string]int{"points": -5}).AssertStatus(422)
	if st := env.tracker.State(); st.TotalPoints != 10 {
		t.Errorf("expected balance unchanged at 10, got %d", st.TotalPoints)
	}
	env.tc.Get("/metrics").AssertStatus(200).
		AssertBodyContains(`ecoscan_store_rejections_total{op="add_points"} 1`)
}

func TestAddPointsBadBody(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.PostRaw("/v1/points", "application/json", "{bad").AssertStatus(400)
	env.tc.Post("/v1/points", map[string]any{}).AssertStatus(400)
	env.tc.Post("/v1/points", map[string]any{"points": 2.5}).AssertStatus(400)
}

func TestUpdateCarbonScore(t *testing.T) {
	env := setup(t, "", nil)
	st := decodeState(env.tc.Post("/v1/carbon", map[string]float64{"score": 1.5}).AssertStatus(200))
	if st.CarbonScore != 1.5 || st.TotalPoints != 0 {
		t.Errorf("expected carbon 1.5 with no points, got %+v", st)
	}
	env.tc.Post("/v1/carbon", map[string]float64{"score": -0.1}).AssertStatus(422)
	if env.tracker.State().CarbonScore != 1.5 {
		t.Error("expected carbon unchanged after rejection")
	}
}

func TestResetClearsCatalog(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 60})

	st := decodeState(env.tc.Post("/v1/reset", nil).AssertStatus(200))
	if st.TotalPoints != 0 || st.CarbonScore != 0 || len(st.AvailableOffers) != 0 || len(st.UpcomingOffers) != 0 {
		t.Errorf("expected empty state after reset, got %+v", st)
	}
}

func TestImpact(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 120})
	env.tc.Post("/v1/carbon", map[string]float64{"score": 12.346})

	var sum impact.Summary
	env.tc.Get("/v1/impact").AssertStatus(200).JSON(&sum)
	if sum.CarbonSavedKg != 12.35 || sum.TreesEquivalent != 1.2 || sum.WaterSavedLitres != 6 {
		t.Errorf("unexpected impact numbers: %+v", sum)
	}
	if sum.Milestone == nil || !sum.Milestone.Reached {
		t.Errorf("expected milestone reached, got %+v", sum.Milestone)
	}
}

// --- Offers ---

func TestGetOffersEnvelope(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 50})

	var resp scoring.OffersResponse
	env.tc.Get("/v1/offers").AssertStatus(200).JSON(&resp)
	if !resp.Success || resp.Data == nil {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
	if resp.Data.UserPoints != 50 || len(resp.Data.AvailableOffers) != 3 || len(resp.Data.UpcomingOffers) != 7 {
		t.Errorf("unexpected offers data: %+v", resp.Data)
	}
}

func TestReplaceOffers(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 10})

	catalog := []offers.Offer{
		{ID: "x", Title: "Sticker", PointsRequired: 5, Type: offers.KindProduct, Tier: offers.TierBasic},
		{ID: "y", Title: "Mug", PointsRequired: 15, Type: offers.KindProduct, Tier: offers.TierEco},
	}
	st := decodeState(env.tc.Put("/v1/offers", catalog).AssertStatus(200))
	if len(st.AvailableOffers) != 1 || st.AvailableOffers[0].ID != "x" {
		t.Errorf("expected x available, got %+v", st.AvailableOffers)
	}
	if len(st.UpcomingOffers) != 1 || st.UpcomingOffers[0].PointsNeeded != 5 {
		t.Errorf("expected y upcoming with 5 needed, got %+v", st.UpcomingOffers)
	}
}

func TestReplaceOffersInvalid(t *testing.T) {
	env := setup(t, "", nil)
	dup := []offers.Offer{{ID: "x", PointsRequired: 5}, {ID: "x", PointsRequired: 10}}
	env.tc.Put("/v1/offers", dup).AssertStatus(422)
	env.tc.Put("/v1/offers", []offers.Offer{{ID: "n", PointsRequired: -1}}).AssertStatus(422)
	env.tc.Put("/v1/offers", map[string]string{"not": "an array"}).AssertStatus(400)
	env.tc.Put("/v1/offers", []map[string]any{
		{"id": "z", "pointsRequired": 5, "type": "discount", "tier": "bogus"},
	}).AssertStatus(422).AssertBodyContains("not a known tier")
	env.tc.Put("/v1/offers", []map[string]any{
		{"id": "", "pointsRequired": 5, "type": "discount", "tier": "basic"},
	}).AssertStatus(422)

	if st := env.tracker.State(); len(st.UpcomingOffers) != 10 {
		t.Errorf("expected default catalog kept, got %d upcoming", len(st.UpcomingOffers))
	}
	env.tc.Get("/metrics").AssertBodyContains(`ecoscan_catalog_reloads_total{result="error",source="api"} 4`)
}

func TestRefreshOffers(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)

	m := env.tc.Post("/v1/offers/refresh", nil).AssertStatus(200).JSONMap()
	if m["offers"] != float64(2) {
		t.Errorf("expected 2 offers installed, got %v", m["offers"])
	}
	st := env.tracker.State()
	if len(st.AvailableOffers) != 1 || st.AvailableOffers[0].ID != "a" {
		t.Errorf("expected a available, got %+v", st.AvailableOffers)
	}
	if len(st.UpcomingOffers) != 1 || st.UpcomingOffers[0].ID != "b" {
		t.Errorf("expected b upcoming, got %+v", st.UpcomingOffers)
	}
}

func TestRefreshOffersWithoutService(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/offers/refresh", nil).AssertStatus(503)
}

func TestRedeemOffer(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 60})

	m := env.tc.Post("/v1/offers/1/redeem", nil).AssertStatus(200).JSONMap()
	if m["status"] != "redeemed" {
		t.Errorf("expected redeemed, got %+v", m)
	}
	env.tc.Post("/v1/offers/7/redeem", nil).AssertStatus(409)
	env.tc.Post("/v1/offers/nope/redeem", nil).AssertStatus(404)

	if env.tracker.State().TotalPoints != 60 {
		t.Error("expected redemption to leave the balance untouched")
	}
}

// --- Scans ---

func TestScoreItem(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)

	var resp struct {
		Record history.Record  `json:"record"`
		State  offers.AppState `json:"state"`
	}
	env.tc.Post("/v1/scans/score", map[string]any{
		"name":        "shirt",
		"material":    "cotton",
		"recognition": map[string]any{"items": []string{"t-shirt"}, "confidence": 0.87},
	}).AssertStatus(200).JSON(&resp)

	if resp.Record.ID == "" || resp.Record.EcoPoints != 25 || resp.Record.FinalScore != 3.5 {
		t.Errorf("unexpected record: %+v", resp.Record)
	}
	if len(resp.Record.Items) != 1 || resp.Record.Confidence != 0.87 {
		t.Errorf("expected recognition attached, got %+v", resp.Record)
	}
	if resp.State.TotalPoints != 25 || resp.State.CarbonScore != 3.5 {
		t.Errorf("expected session credited, got %+v", resp.State)
	}
}

func TestScoreItemFailures(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)

	env.tc.Post("/v1/scans/score", map[string]any{"name": "shirt", "material": "silk"}).AssertStatus(422)
	env.tc.Post("/v1/scans/score", map[string]any{"material": "wool"}).AssertStatus(422)
	env.tc.Post("/v1/scans/score", map[string]any{"name": "reject"}).AssertStatus(502)
	env.tc.Post("/v1/scans/score", map[string]any{"name": "boom"}).AssertStatus(502)

	if st := env.tracker.State(); st.TotalPoints != 0 || st.CarbonScore != 0 {
		t.Errorf("expected nothing credited, got %+v", st)
	}
}

func TestApplyScan(t *testing.T) {
	env := setup(t, "", nil)

	scan := map[string]any{
		"request": map[string]any{"name": "jeans", "material": "recycled"},
		"score":   map[string]any{"finalScore": 2.25, "ecoPoints": 30},
	}
	m := env.tc.Post("/v1/scans", scan).AssertStatus(200).JSONMap()
	if rec := m["record"].(map[string]any); rec["name"] != "jeans" {
		t.Errorf("unexpected record: %+v", rec)
	}

	bad := map[string]any{
		"request": map[string]any{"name": "jeans"},
		"score":   map[string]any{"finalScore": 1, "ecoPoints": -3},
	}
	env.tc.Post("/v1/scans", bad).AssertStatus(422)
	if st := env.tracker.State(); st.TotalPoints != 30 || st.CarbonScore != 2.25 {
		t.Errorf("expected only the first scan applied, got %+v", st)
	}
}

func TestRecognizeImage(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)

	var resp scoring.ImageRecognitionResponse
	env.tc.PostMultipart("/v1/scans/recognize", "image", "shirt.jpg", []byte("jpeg bytes")).
		AssertStatus(200).JSON(&resp)
	if !resp.Success || resp.Data == nil || resp.Data.Items[0] != "t-shirt" {
		t.Errorf("unexpected recognition: %+v", resp)
	}
	if env.tracker.State().TotalPoints != 0 {
		t.Error("expected recognition to leave the session unchanged")
	}
}

func TestRecognizeImageRequiresFile(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)
	env.tc.PostRaw("/v1/scans/recognize", "application/json", "{}").AssertStatus(400)
	env.tc.PostMultipart("/v1/scans/recognize", "photo", "shirt.jpg", []byte("x")).AssertStatus(400)
}

// --- History ---

func TestHistoryAndProgression(t *testing.T) {
	env := setup(t, fakeService(t).URL, nil)
	env.tc.Post("/v1/scans/score", map[string]any{"name": "shirt"}).AssertStatus(200)
	env.tc.Post("/v1/scans/score", map[string]any{"name": "coat"}).AssertStatus(200)

	var list struct {
		Scans []history.Record `json:"scans"`
		Count int              `json:"count"`
	}
	env.tc.Get("/v1/history").AssertStatus(200).JSON(&list)
	if list.Count != 2 || list.Scans[0].Name != "coat" {
		t.Errorf("expected newest first, got %+v", list.Scans)
	}
	env.tc.Get("/v1/history?limit=1").JSON(&list)
	if list.Count != 1 {
		t.Errorf("expected limit honoured, got %d", list.Count)
	}
	env.tc.Get("/v1/history?limit=abc").AssertStatus(400)
	env.tc.Get("/v1/history?limit=0").AssertStatus(400)

	var prog struct {
		Samples []history.Sample `json:"samples"`
	}
	env.tc.Get("/v1/history/progression").AssertStatus(200).JSON(&prog)
	// Start, then one sample per scan.
	if len(prog.Samples) != 3 || prog.Samples[0].Label != "Start" || prog.Samples[1].Points != 25 {
		t.Errorf("unexpected progression: %+v", prog.Samples)
	}
	env.tc.Get("/v1/history/progression?n=2").JSON(&prog)
	if len(prog.Samples) != 2 || prog.Samples[1].Points != 50 || prog.Samples[1].Carbon != 7 {
		t.Errorf("expected newest two samples, got %+v", prog.Samples)
	}
}

// --- Admin, metrics, rate limiting ---

func TestAdminResetReseedsCatalog(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 80})

	env.ac.Reset().AssertStatus(200)
	st := env.tracker.State()
	if st.TotalPoints != 0 || len(st.UpcomingOffers) != 10 {
		t.Errorf("expected fresh session with default catalog, got %+v", st)
	}
}

func TestAdminStateRoundTrip(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/scans", map[string]any{
		"request": map[string]any{"name": "scarf"},
		"score":   map[string]any{"finalScore": 1.5, "ecoPoints": 40},
	}).AssertStatus(200)

	var snap api.StateSnapshot
	env.ac.GetState().AssertStatus(200).JSON(&snap)
	if snap.Store.TotalPoints != 40 || len(snap.Store.Catalog) != 10 || len(snap.History) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	snap.Store.TotalPoints = 200
	env.ac.LoadState(snap).AssertStatus(200)
	st := env.tracker.State()
	if st.TotalPoints != 200 || len(st.AvailableOffers) != 8 {
		t.Errorf("expected restored state with 8 available, got %d points / %d available",
			st.TotalPoints, len(st.AvailableOffers))
	}

	snap.Store.TotalPoints = -1
	env.ac.LoadState(snap).AssertStatus(400)
}

func TestAdminReloadCatalog(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/reset", nil)

	m := env.ac.ReloadCatalog().AssertStatus(200).JSONMap()
	if m["offers"] != float64(10) {
		t.Errorf("expected 10 offers, got %+v", m)
	}
	if len(env.tracker.State().UpcomingOffers) != 10 {
		t.Error("expected catalog reinstalled")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t, "", nil)
	env.tc.Post("/v1/points", map[string]int{"points": 25})

	body := string(env.tc.Get("/metrics").AssertStatus(200).Body)
	for _, want := range []string{
		"ecoscan_store_total_points 25",
		`ecoscan_store_offers{bucket="available"} 1`,
		`ecoscan_http_requests_total{method="POST",route="/v1/points",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	env := setup(t, "", &appcore.Config{Name: "ecoscan-test", RequestsPerMinute: 1, Burst: 2})
	env.tc.Get("/v1/state").AssertStatus(200)
	env.tc.Get("/v1/state").AssertStatus(200)
	env.tc.Get("/v1/state").AssertStatus(429)
	// The admin plane is not limited.
	env.ac.Health().AssertStatus(200)
}
