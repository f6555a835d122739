// Package catalog supplies the reward catalog fed to the offer store: the
// built-in default catalog, catalog files on disk, and a watcher that
// reports when those files change.
package catalog

import "github.com/wondertwin-ai/ecoscan/internal/offers"

// Default returns the built-in catalog shipped with the app.
func Default() []offers.Offer {
	return []offers.Offer{
		{ID: "1", Title: "10% Off Next Purchase", Description: "Get 10% off on your next eco-friendly purchase", PointsRequired: 20, Type: offers.KindDiscount, Tier: offers.TierBasic},
		{ID: "2", Title: "Free Recycling Kit", Description: "Get a free clothing recycling kit", PointsRequired: 50, Type: offers.KindFreebie, Tier: offers.TierBasic},
		{ID: "3", Title: "Eco-Friendly Laundry Guide", Description: "Digital guide for sustainable clothing care", PointsRequired: 30, Type: offers.KindDigital, Tier: offers.TierBasic},
		{ID: "4", Title: "Carbon Offset Certificate", Description: "Receive a certificate for your carbon savings", PointsRequired: 75, Type: offers.KindCertificate, Tier: offers.TierEco},
		{ID: "5", Title: "20% Off Sustainable Brands", Description: "Get 20% off on selected sustainable fashion brands", PointsRequired: 100, Type: offers.KindDiscount, Tier: offers.TierEco},
		{ID: "6", Title: "Eco-Friendly Fabric Care Kit", Description: "Kit includes natural detergent and fabric care items", PointsRequired: 80, Type: offers.KindProduct, Tier: offers.TierEco},
		{ID: "7", Title: "Sustainable Fashion Consultation", Description: "One-on-one session with a sustainable fashion expert", PointsRequired: 150, Type: offers.KindService, Tier: offers.TierPremium},
		{ID: "8", Title: "Eco-Wardrobe Makeover", Description: "Complete wardrobe sustainability assessment and recommendations", PointsRequired: 200, Type: offers.KindService, Tier: offers.TierPremium},
		{ID: "9", Title: "Sustainable Shopping Spree", Description: "50% off on sustainable fashion items up to $200", PointsRequired: 175, Type: offers.KindDiscount, Tier: offers.TierPremium},
		{ID: "10", Title: "VIP Sustainable Fashion Event", Description: "Exclusive access to sustainable fashion shows and events", PointsRequired: 250, Type: offers.KindExperience, Tier: offers.TierElite},
	}
}
