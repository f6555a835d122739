// Package impact derives the environmental figures, milestone and tip shown on
// the home screen from the session totals.
package impact

import (
	"fmt"
	"math"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// MilestonePoints is the balance that earns the Eco Warrior title.
const MilestonePoints = 100

const (
	treesPerKg = 0.1
	waterPerKg = 0.5
)

// Milestone tracks progress toward the Eco Warrior title. It is only
// reported once the user has earned points.
type Milestone struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Reached   bool   `json:"reached"`
	Remaining int    `json:"remaining"`
}

// Tip is the contextual message on the home screen.
type Tip struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Summary is the home-screen impact view.
type Summary struct {
	TotalPoints      int        `json:"totalPoints"`
	CarbonSavedKg    float64    `json:"carbonSavedKg"`
	TreesEquivalent  float64    `json:"treesEquivalent"`
	WaterSavedLitres int        `json:"waterSavedLitres"`
	Milestone        *Milestone `json:"milestone,omitempty"`
	Tip              Tip        `json:"tip"`
}

// Summarize computes the impact view for state.
func Summarize(state offers.AppState) Summary {
	carbon := round(state.CarbonScore, 2)
	trees := round(state.CarbonScore*treesPerKg, 1)
	sum := Summary{
		TotalPoints:      state.TotalPoints,
		CarbonSavedKg:    carbon,
		TreesEquivalent:  trees,
		WaterSavedLitres: int(math.Round(state.CarbonScore * waterPerKg)),
		Tip:              tipFor(state, carbon, trees),
	}
	if state.TotalPoints > 0 {
		sum.Milestone = milestoneFor(state.TotalPoints)
	}
	return sum
}

func milestoneFor(points int) *Milestone {
	if points >= MilestonePoints {
		return &Milestone{
			Title:   "Eco Warrior!",
			Message: fmt.Sprintf("You've earned over %d points!", MilestonePoints),
			Reached: true,
		}
	}
	remaining := MilestonePoints - points
	return &Milestone{
		Title:     "Next Milestone",
		Message:   fmt.Sprintf("%d points to reach Eco Warrior status", remaining),
		Remaining: remaining,
	}
}

func tipFor(state offers.AppState, carbon, trees float64) Tip {
	switch {
	case state.TotalPoints == 0:
		return Tip{
			Icon:  "lightbulb-o",
			Title: "Start Your Eco Journey",
			Text:  "Scan your first clothing item to begin tracking your environmental impact!",
		}
	case state.CarbonScore > 10:
		return Tip{
			Icon:  "leaf",
			Title: "Making a Difference!",
			Text:  fmt.Sprintf("You've saved %.2fkg of CO₂! That's equivalent to planting %.1f trees.", carbon, trees),
		}
	default:
		return Tip{
			Icon:  "recycle",
			Title: "Keep Going!",
			Text:  "Every scan helps build a more sustainable future.",
		}
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
