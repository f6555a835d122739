// Package scenario loads and replays YAML and JSON scenarios against an offer
// store: a seed catalog followed by a list of operations, each with optional
// expectations about the resulting state.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// Operation names accepted in Step.Op.
const (
	OpAddPoints = "add_points"
	OpCarbon    = "update_carbon_score"
	OpAddOffers = "add_offers"
	OpReset     = "reset"
)

// Scenario is a complete replay loaded from a file.
type Scenario struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	// Catalog is installed before the first step. "default" selects the
	// built-in catalog; any other value is a catalog file path relative to
	// the scenario file. Offers takes precedence when both are set.
	Catalog string         `yaml:"catalog" json:"catalog,omitempty"`
	Offers  []offers.Offer `yaml:"offers" json:"offers,omitempty"`
	Steps   []Step         `yaml:"steps" json:"steps"`

	dir string
}

// Step is one operation and what should hold afterwards.
type Step struct {
	Name   string         `yaml:"name" json:"name"`
	Op     string         `yaml:"op" json:"op"`
	Points int            `yaml:"points" json:"points,omitempty"`
	Score  float64        `yaml:"score" json:"score,omitempty"`
	Offers []offers.Offer `yaml:"offers" json:"offers,omitempty"`
	Expect Expect         `yaml:"expect" json:"expect"`
}

// Expect lists assertions. Unset fields are not checked.
type Expect struct {
	// Error is "" for success or "invalid_input".
	Error        string         `yaml:"error" json:"error,omitempty"`
	TotalPoints  *int           `yaml:"total_points" json:"total_points,omitempty"`
	CarbonScore  *float64       `yaml:"carbon_score" json:"carbon_score,omitempty"`
	Available    []string       `yaml:"available" json:"available,omitempty"`
	Upcoming     []string       `yaml:"upcoming" json:"upcoming,omitempty"`
	PointsNeeded map[string]int `yaml:"points_needed" json:"points_needed,omitempty"`
}

// LoadScenario parses a single YAML or JSON scenario file.
// The format is detected by file extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, step := range s.Steps {
		switch step.Op {
		case OpAddPoints, OpCarbon, OpAddOffers, OpReset:
		default:
			return nil, fmt.Errorf("scenario %s: steps[%d]: unknown op %q", path, i, step.Op)
		}
		switch step.Expect.Error {
		case "", "invalid_input":
		default:
			return nil, fmt.Errorf("scenario %s: steps[%d]: unknown expected error %q", path, i, step.Expect.Error)
		}
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadDir loads all .yaml, .yml, and .json scenario files from a directory.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
