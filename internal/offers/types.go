package offers

// Tier is the informational reward tier of an offer. No eligibility logic depends on it.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierEco     Tier = "eco"
	TierPremium Tier = "premium"
	TierElite   Tier = "elite"
)

// Kind is the offer type shown by the rewards screen.
type Kind string

const (
	KindDiscount    Kind = "discount"
	KindFreebie     Kind = "freebie"
	KindDigital     Kind = "digital"
	KindCertificate Kind = "certificate"
	KindProduct     Kind = "product"
	KindService     Kind = "service"
	KindEducation   Kind = "education"
	KindExperience  Kind = "experience"
	KindMembership  Kind = "membership"
)

// Tiers lists every known tier in ascending order.
var Tiers = []Tier{TierBasic, TierEco, TierPremium, TierElite}

// Kinds lists every known offer type.
var Kinds = []Kind{
	KindDiscount, KindFreebie, KindDigital, KindCertificate, KindProduct,
	KindService, KindEducation, KindExperience, KindMembership,
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	for _, v := range Tiers {
		if v == t {
			return true
		}
	}
	return false
}

// Valid reports whether k is one of the known offer types.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Offer is a point-gated entry in the reward catalog.
type Offer struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description"`
	PointsRequired int    `json:"pointsRequired" yaml:"points_required"`
	Type           Kind   `json:"type" yaml:"type"`
	Tier           Tier   `json:"tier" yaml:"tier"`
}

// UpcomingOffer is an offer the user has not reached yet, annotated with the
// points still missing. PointsNeeded is always > 0.
type UpcomingOffer struct {
	Offer
	PointsNeeded int `json:"pointsNeeded"`
}

// AppState is a read-only view of the store. Both offer lists are sorted
// ascending by PointsRequired.
type AppState struct {
	TotalPoints     int             `json:"totalPoints"`
	CarbonScore     float64         `json:"carbonScore"`
	AvailableOffers []Offer         `json:"availableOffers"`
	UpcomingOffers  []UpcomingOffer `json:"upcomingOffers"`
}

// Snapshot is the restorable form of a store: the totals plus the full catalog.
// The partition is derived, so it is not part of the snapshot.
type Snapshot struct {
	TotalPoints int     `json:"totalPoints"`
	CarbonScore float64 `json:"carbonScore"`
	Catalog     []Offer `json:"catalog"`
}
