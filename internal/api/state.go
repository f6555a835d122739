package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/metrics"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/session"
)

// CatalogSource produces the catalog a fresh session starts with.
type CatalogSource func(ctx context.Context) ([]offers.Offer, error)

// StateSnapshot is the /admin/state document.
type StateSnapshot struct {
	Store   offers.Snapshot  `json:"store"`
	History []history.Record `json:"history"`
}

// AdminState adapts a tracker to the admin control plane. Unlike POST
// /v1/reset, an admin reset reseeds the catalog from the source so the
// server returns to how it started.
type AdminState struct {
	tracker *session.Tracker
	source  CatalogSource
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAdminState creates the admin adapter. source and m may be nil.
func NewAdminState(tracker *session.Tracker, source CatalogSource, m *metrics.Metrics, logger *slog.Logger) *AdminState {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &AdminState{tracker: tracker, source: source, metrics: m, logger: logger}
}

// Snapshot implements admin.StateStore.
func (s *AdminState) Snapshot() any {
	recs, err := s.tracker.History(context.Background(), 0)
	if err != nil {
		s.logger.Warn("listing history for snapshot failed", "error", err)
		recs = []history.Record{}
	}
	return StateSnapshot{
		Store:   s.tracker.Store().Snapshot(),
		History: recs,
	}
}

// LoadState implements admin.StateStore.
func (s *AdminState) LoadState(data []byte) error {
	var snap StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	return s.tracker.Restore(context.Background(), snap.Store, snap.History)
}

// Reset implements admin.StateStore.
func (s *AdminState) Reset(ctx context.Context) error {
	if err := s.tracker.Reset(ctx); err != nil {
		return err
	}
	if s.source == nil {
		return nil
	}
	_, err := s.ReloadCatalog(ctx)
	return err
}

// ReloadCatalog implements admin.CatalogReloader.
func (s *AdminState) ReloadCatalog(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, fmt.Errorf("no catalog source configured")
	}
	catalog, err := s.source(ctx)
	if err == nil {
		err = s.tracker.LoadCatalog(catalog)
	}
	if s.metrics != nil {
		s.metrics.CatalogReloaded("admin", err)
	}
	if err != nil {
		return 0, fmt.Errorf("reloading catalog: %w", err)
	}
	return len(catalog), nil
}
