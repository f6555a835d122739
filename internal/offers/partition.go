package offers

import "sort"

// Recalculate partitions catalog against points. Offers are stable-sorted by
// PointsRequired so ties keep their catalog order. An offer is available when
// points >= PointsRequired; otherwise it is returned as an UpcomingOffer with
// PointsNeeded = PointsRequired - points.
//
// Recalculate is pure: catalog is not modified and both result slices are
// freshly allocated (never nil).
func Recalculate(catalog []Offer, points int) ([]Offer, []UpcomingOffer) {
	sorted := make([]Offer, len(catalog))
	copy(sorted, catalog)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PointsRequired < sorted[j].PointsRequired
	})

	available := make([]Offer, 0, len(sorted))
	upcoming := make([]UpcomingOffer, 0, len(sorted))
	for _, o := range sorted {
		if points >= o.PointsRequired {
			available = append(available, o)
			continue
		}
		upcoming = append(upcoming, UpcomingOffer{
			Offer:        o,
			PointsNeeded: o.PointsRequired - points,
		})
	}
	return available, upcoming
}

// union rebuilds the known catalog from a partition, in partition order.
func union(available []Offer, upcoming []UpcomingOffer) []Offer {
	out := make([]Offer, 0, len(available)+len(upcoming))
	out = append(out, available...)
	for _, u := range upcoming {
		out = append(out, u.Offer)
	}
	return out
}
