// Package history records completed scans and the points progression shown on
// the history screen.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wondertwin-ai/ecoscan/internal/scoring"
)

// DefaultListLimit is used when List is called with a non-positive limit by
// the HTTP layer.
const DefaultListLimit = 20

// ErrClosed is returned by repositories after Close.
var ErrClosed = errors.New("history repository closed")

// Record is one completed scan.
type Record struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Items      []string          `json:"items,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Material   scoring.Material  `json:"material,omitempty"`
	Condition  scoring.Condition `json:"condition,omitempty"`
	Age        scoring.Age       `json:"age,omitempty"`
	FinalScore float64           `json:"finalScore"`
	EcoPoints  int               `json:"ecoPoints"`
	Date       time.Time         `json:"date"`
}

// NewRecord builds a record for a scored item with a fresh ID.
func NewRecord(req scoring.CarbonScoreRequest, score scoring.CarbonScore, at time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Material:   req.Material,
		Condition:  req.Condition,
		Age:        req.Age,
		FinalScore: score.FinalScore,
		EcoPoints:  score.EcoPoints,
		Date:       at.UTC(),
	}
}

// Repository stores scan records.
type Repository interface {
	Save(ctx context.Context, rec Record) error
	// List returns up to limit records, newest first. A non-positive limit
	// returns all records.
	List(ctx context.Context, limit int) ([]Record, error)
	Reset(ctx context.Context) error
}
