// Package session applies completed scans to the offer store and keeps the
// scan history and progression in step with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/catalog"
	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/impact"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
)

var (
	// ErrUnknownOffer is returned by Redeem for an id outside the catalog.
	ErrUnknownOffer = errors.New("unknown offer")
	// ErrNotEligible is returned by Redeem when the balance is too low.
	ErrNotEligible = errors.New("offer not yet available")
	// ErrNoScorer is returned by service-backed operations when the tracker
	// was built without a scoring client.
	ErrNoScorer = errors.New("no scoring service configured")
)

// Scorer is the subset of the scoring client the tracker needs.
type Scorer interface {
	RecognizeImage(ctx context.Context, filename string, image io.Reader) (*scoring.Recognition, error)
	CarbonScore(ctx context.Context, req scoring.CarbonScoreRequest) (*scoring.CarbonScore, error)
	FetchOffers(ctx context.Context) (*scoring.OffersData, error)
}

// RejectionRecorder counts mutations refused as invalid input or an invalid
// catalog.
type RejectionRecorder interface {
	Rejected(op string)
}

// Scan is a completed scan: what the user entered, what the service scored,
// and optionally what recognition detected.
type Scan struct {
	Request     scoring.CarbonScoreRequest `json:"request"`
	Score       scoring.CarbonScore        `json:"score"`
	Recognition *scoring.Recognition       `json:"recognition,omitempty"`
}

// Options configures a Tracker. Only Store is required.
type Options struct {
	Store    *offers.Store
	Scorer   Scorer
	History  history.Repository
	Timeline *history.Timeline
	Clock    history.Clock
	Logger   *slog.Logger
	Recorder RejectionRecorder
}

// Tracker is the single entry point the HTTP layer and CLI use to change the
// session.
type Tracker struct {
	store    *offers.Store
	scorer   Scorer
	history  history.Repository
	timeline *history.Timeline
	clock    history.Clock
	logger   *slog.Logger
	recorder RejectionRecorder
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// New creates a tracker and subscribes its timeline to the store.
func New(opts Options) *Tracker {
	t := &Tracker{
		store:    opts.Store,
		scorer:   opts.Scorer,
		history:  opts.History,
		timeline: opts.Timeline,
		clock:    opts.Clock,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if t.store == nil {
		t.store = offers.New()
	}
	if t.history == nil {
		t.history = history.NewMemoryRepository(0)
	}
	if t.clock == nil {
		t.clock = wallClock{}
	}
	if t.timeline == nil {
		t.timeline = history.NewTimeline(t.clock, 0)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	t.store.Subscribe(t.timeline.Observe)
	return t
}

// Store returns the underlying offer store.
func (t *Tracker) Store() *offers.Store { return t.store }

// State returns the current session state.
func (t *Tracker) State() offers.AppState { return t.store.State() }

// AddPoints forwards to the store and counts rejections.
func (t *Tracker) AddPoints(delta int) error {
	return t.rejected("add_points", t.store.AddPoints(delta))
}

// UpdateCarbonScore forwards to the store and counts rejections.
func (t *Tracker) UpdateCarbonScore(delta float64) error {
	return t.rejected("update_carbon_score", t.store.UpdateCarbonScore(delta))
}

// LoadCatalog validates list and replaces the known catalog with it. Every
// ingress (file, API, service refresh, restore) goes through the same checks.
func (t *Tracker) LoadCatalog(list []offers.Offer) error {
	if err := t.rejected("add_offers", catalog.Validate(list)); err != nil {
		return err
	}
	if err := t.rejected("add_offers", t.store.AddOffers(list)); err != nil {
		return err
	}
	t.logger.Info("catalog loaded", "offers", len(list))
	return nil
}

// Recognize forwards an image to the recognition service.
func (t *Tracker) Recognize(ctx context.Context, filename string, image io.Reader) (*scoring.Recognition, error) {
	if t.scorer == nil {
		return nil, ErrNoScorer
	}
	rec, err := t.scorer.RecognizeImage(ctx, filename, image)
	if err != nil {
		return nil, fmt.Errorf("recognizing image: %w", err)
	}
	return rec, nil
}

// Score asks the service to score req and applies the result.
func (t *Tracker) Score(ctx context.Context, req scoring.CarbonScoreRequest, recognition *scoring.Recognition) (history.Record, error) {
	if t.scorer == nil {
		return history.Record{}, ErrNoScorer
	}
	score, err := t.scorer.CarbonScore(ctx, req)
	if err != nil {
		return history.Record{}, fmt.Errorf("scoring %q: %w", req.Name, err)
	}
	return t.ApplyScore(ctx, Scan{Request: req, Score: *score, Recognition: recognition})
}

// ApplyScore credits a completed scan. Points and carbon are applied together
// in one store mutation, so observers see one step per scan. The history
// record is saved after the totals change; a save failure is returned but
// does not undo the credit.
func (t *Tracker) ApplyScore(ctx context.Context, scan Scan) (history.Record, error) {
	if err := t.rejected("apply_score", t.store.Credit(scan.Score.EcoPoints, scan.Score.FinalScore)); err != nil {
		return history.Record{}, err
	}

	rec := history.NewRecord(scan.Request, scan.Score, t.clock.Now())
	if scan.Recognition != nil {
		rec.Items = append([]string(nil), scan.Recognition.Items...)
		rec.Confidence = scan.Recognition.Confidence
	}
	if err := t.history.Save(ctx, rec); err != nil {
		t.logger.Warn("saving scan history failed", "id", rec.ID, "error", err)
		return rec, fmt.Errorf("saving scan history: %w", err)
	}
	t.logger.Info("scan applied",
		"id", rec.ID, "name", rec.Name, "eco_points", rec.EcoPoints, "final_score", rec.FinalScore)
	return rec, nil
}

// RefreshCatalog fetches the catalog from the service and installs the union
// of its available and upcoming lists.
func (t *Tracker) RefreshCatalog(ctx context.Context) (int, error) {
	if t.scorer == nil {
		return 0, ErrNoScorer
	}
	data, err := t.scorer.FetchOffers(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching offers: %w", err)
	}
	list := data.Catalog()
	if err := t.LoadCatalog(list); err != nil {
		return 0, err
	}
	return len(list), nil
}

// Redeem checks that id is currently available. Points are not spent.
func (t *Tracker) Redeem(id string) (offers.Offer, error) {
	o, ok := t.store.Lookup(id)
	if !ok {
		return offers.Offer{}, fmt.Errorf("redeem %q: %w", id, ErrUnknownOffer)
	}
	if !t.store.IsAvailable(id) {
		return offers.Offer{}, fmt.Errorf("redeem %q: %w", id, ErrNotEligible)
	}
	t.logger.Info("offer redeemed", "id", o.ID, "points_required", o.PointsRequired)
	return o, nil
}

// History returns up to limit scan records, newest first.
func (t *Tracker) History(ctx context.Context, limit int) ([]history.Record, error) {
	return t.history.List(ctx, limit)
}

// Progression returns the newest n progression samples.
func (t *Tracker) Progression(n int) []history.Sample {
	return t.timeline.Last(n)
}

// Impact summarizes the current state for the home screen.
func (t *Tracker) Impact() impact.Summary {
	return impact.Summarize(t.store.State())
}

// Reset clears the store, the progression and the scan history.
func (t *Tracker) Reset(ctx context.Context) error {
	t.store.Reset()
	t.timeline.Reset()
	if err := t.history.Reset(ctx); err != nil {
		return fmt.Errorf("resetting history: %w", err)
	}
	t.logger.Info("session reset")
	return nil
}

// Restore replaces the store state and the scan history. records are newest
// first, as History returns them. The snapshot is validated before anything
// is replaced, and history is cleared before the store is loaded, so a
// history failure leaves the previous store in place.
func (t *Tracker) Restore(ctx context.Context, snap offers.Snapshot, records []history.Record) error {
	if err := catalog.Validate(snap.Catalog); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := offers.New().LoadState(snap); err != nil {
		return err
	}
	if err := t.history.Reset(ctx); err != nil {
		return fmt.Errorf("resetting history: %w", err)
	}
	if err := t.store.LoadState(snap); err != nil {
		return err
	}
	for i := len(records) - 1; i >= 0; i-- {
		if err := t.history.Save(ctx, records[i]); err != nil {
			return fmt.Errorf("restoring history record %s: %w", records[i].ID, err)
		}
	}
	t.logger.Info("session restored", "total_points", snap.TotalPoints, "history", len(records))
	return nil
}

func (t *Tracker) rejected(op string, err error) error {
	if err != nil && t.recorder != nil &&
		(errors.Is(err, offers.ErrInvalidInput) || errors.Is(err, catalog.ErrInvalidCatalog)) {
		t.recorder.Rejected(op)
	}
	return err
}
