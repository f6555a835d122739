package scoring

import (
	"fmt"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

// Material of a scanned garment.
type Material string

const (
	MaterialCotton        Material = "cotton"
	MaterialOrganicCotton Material = "organic-cotton"
	MaterialPolyester     Material = "polyester"
	MaterialWool          Material = "wool"
	MaterialRecycled      Material = "recycled"
)

// Condition of a scanned garment.
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionGood Condition = "good"
	ConditionFair Condition = "fair"
	ConditionPoor Condition = "poor"
)

// Age bucket of a scanned garment.
type Age string

const (
	AgeUnderSixMonths Age = "0-6m"
	AgeSixToTwelve    Age = "6-12m"
	AgeOverOneYear    Age = "1y+"
)

// CarbonScoreRequest carries the user-supplied attributes of a scanned item.
// Material, Condition and Age are optional.
type CarbonScoreRequest struct {
	Name      string    `json:"name"`
	Material  Material  `json:"material,omitempty"`
	Condition Condition `json:"condition,omitempty"`
	Age       Age       `json:"age,omitempty"`
}

// Validate checks the request before it is sent.
func (r CarbonScoreRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	switch r.Material {
	case "", MaterialCotton, MaterialOrganicCotton, MaterialPolyester, MaterialWool, MaterialRecycled:
	default:
		return fmt.Errorf("%w: unknown material %q", ErrInvalidRequest, r.Material)
	}
	switch r.Condition {
	case "", ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
	default:
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidRequest, r.Condition)
	}
	switch r.Age {
	case "", AgeUnderSixMonths, AgeSixToTwelve, AgeOverOneYear:
	default:
		return fmt.Errorf("%w: unknown age %q", ErrInvalidRequest, r.Age)
	}
	return nil
}

// Adjustments are the per-attribute score modifiers reported by the service.
type Adjustments struct {
	Material  float64 `json:"material"`
	Condition float64 `json:"condition"`
	Age       float64 `json:"age"`
}

// CarbonScore is the scoring result for one item.
type CarbonScore struct {
	BaseScore   float64     `json:"baseScore"`
	Adjustments Adjustments `json:"adjustments"`
	FinalScore  float64     `json:"finalScore"`
	EcoPoints   int         `json:"ecoPoints"`
}

// CarbonScoreResponse is the service envelope for POST /carbon-score.
type CarbonScoreResponse struct {
	Success bool         `json:"success"`
	Data    *CarbonScore `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Recognition is the image-recognition result.
type Recognition struct {
	Items      []string `json:"items"`
	Confidence float64  `json:"confidence"`
}

// ImageRecognitionResponse is the service envelope for POST /recognize-image.
type ImageRecognitionResponse struct {
	Success bool         `json:"success"`
	Data    *Recognition `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// OffersData is the payload of GET /offers.
type OffersData struct {
	UserPoints      int                    `json:"userPoints"`
	AvailableOffers []offers.Offer         `json:"availableOffers"`
	UpcomingOffers  []offers.UpcomingOffer `json:"upcomingOffers"`
}

// OffersResponse is the service envelope for GET /offers.
type OffersResponse struct {
	Success bool        `json:"success"`
	Data    *OffersData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Catalog returns the union of both lists, available first.
func (d OffersData) Catalog() []offers.Offer {
	out := make([]offers.Offer, 0, len(d.AvailableOffers)+len(d.UpcomingOffers))
	out = append(out, d.AvailableOffers...)
	for _, u := range d.UpcomingOffers {
		out = append(out, u.Offer)
	}
	return out
}
