package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/catalog"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
	Final        offers.AppState
}

// Target is what a scenario drives. *offers.Store satisfies it.
type Target interface {
	AddPoints(delta int) error
	UpdateCarbonScore(delta float64) error
	AddOffers(catalog []offers.Offer) error
	Reset()
	State() offers.AppState
}

// Run replays s against target. Failing steps do not stop the run; an error
// is returned only when the seed catalog cannot be installed.
func Run(s *Scenario, target Target) (*Result, error) {
	start := time.Now()
	result := &Result{
		ScenarioName: s.Name,
		Passed:       true,
	}

	// --- Setup phase ---
	seed, err := s.seedCatalog()
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	if seed != nil {
		if err := target.AddOffers(seed); err != nil {
			return nil, fmt.Errorf("setup failed: %w", err)
		}
	}

	// --- Steps phase ---
	for i := range s.Steps {
		sr := runStep(&s.Steps[i], target)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
	}

	result.Final = target.State()
	result.Duration = time.Since(start)
	return result, nil
}

func (s *Scenario) seedCatalog() ([]offers.Offer, error) {
	switch {
	case s.Offers != nil:
		return s.Offers, nil
	case s.Catalog == "":
		return nil, nil
	case s.Catalog == "default":
		return catalog.Default(), nil
	default:
		path := s.Catalog
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		return catalog.LoadFile(path)
	}
}

func runStep(step *Step, target Target) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	if sr.Name == "" {
		sr.Name = step.Op
	}

	var err error
	switch step.Op {
	case OpAddPoints:
		err = target.AddPoints(step.Points)
	case OpCarbon:
		err = target.UpdateCarbonScore(step.Score)
	case OpAddOffers:
		err = target.AddOffers(step.Offers)
	case OpReset:
		target.Reset()
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	if msg := check(step.Expect, err, target.State()); msg != "" {
		sr.Error = msg
		sr.Duration = time.Since(start)
		return sr
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}

// check returns the first failed expectation, or "".
func check(want Expect, err error, st offers.AppState) string {
	switch want.Error {
	case "":
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
	case "invalid_input":
		if !errors.Is(err, offers.ErrInvalidInput) {
			return fmt.Sprintf("expected invalid_input, got %v", err)
		}
	}

	if want.TotalPoints != nil && st.TotalPoints != *want.TotalPoints {
		return fmt.Sprintf("expected total_points %d, got %d", *want.TotalPoints, st.TotalPoints)
	}
	if want.CarbonScore != nil && st.CarbonScore != *want.CarbonScore {
		return fmt.Sprintf("expected carbon_score %v, got %v", *want.CarbonScore, st.CarbonScore)
	}
	if want.Available != nil {
		got := make([]string, len(st.AvailableOffers))
		for i, o := range st.AvailableOffers {
			got[i] = o.ID
		}
		if !slices.Equal(got, want.Available) {
			return fmt.Sprintf("expected available %v, got %v", want.Available, got)
		}
	}
	if want.Upcoming != nil {
		got := make([]string, len(st.UpcomingOffers))
		for i, u := range st.UpcomingOffers {
			got[i] = u.ID
		}
		if !slices.Equal(got, want.Upcoming) {
			return fmt.Sprintf("expected upcoming %v, got %v", want.Upcoming, got)
		}
	}
	for id, need := range want.PointsNeeded {
		idx := slices.IndexFunc(st.UpcomingOffers, func(u offers.UpcomingOffer) bool { return u.ID == id })
		if idx < 0 {
			return fmt.Sprintf("points_needed: offer %q is not upcoming", id)
		}
		if got := st.UpcomingOffers[idx].PointsNeeded; got != need {
			return fmt.Sprintf("points_needed: offer %q expected %d, got %d", id, need, got)
		}
	}
	return ""
}
