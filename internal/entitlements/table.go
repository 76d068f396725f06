package entitlements

import (
	"github.com/plateful/plateful-backend/pkg/enums"
)

// Unlimited marks a feature with no cap.
const Unlimited = -1

// TierLimits holds the per-tier numeric caps. A value of Unlimited (-1)
// means the feature is not capped.
type TierLimits struct {
	RecipesPerMonth   int `json:"recipesPerMonth"`
	MealPlansPerMonth int `json:"mealPlansPerMonth"`
	PriceAlerts       int `json:"priceAlerts"`
	Collections       int `json:"collections"`
}

// Limit returns the cap for the named feature.
func (l TierLimits) Limit(feature enums.Feature) int {
	switch feature {
	case enums.FeatureRecipes:
		return l.RecipesPerMonth
	case enums.FeatureMealPlans:
		return l.MealPlansPerMonth
	case enums.FeaturePriceAlerts:
		return l.PriceAlerts
	case enums.FeatureCollections:
		return l.Collections
	default:
		return 0
	}
}

// limitsByTier is the static entitlement table. It is immutable and safe
// for unsynchronized concurrent reads.
var limitsByTier = map[enums.Tier]TierLimits{
	enums.TierFree: {
		RecipesPerMonth:   5,
		MealPlansPerMonth: 1,
		PriceAlerts:       3,
		Collections:       2,
	},
	enums.TierBasic: {
		RecipesPerMonth:   25,
		MealPlansPerMonth: 4,
		PriceAlerts:       10,
		Collections:       10,
	},
	enums.TierPremium: {
		RecipesPerMonth:   100,
		MealPlansPerMonth: 12,
		PriceAlerts:       50,
		Collections:       50,
	},
	enums.TierProfessional: {
		RecipesPerMonth:   Unlimited,
		MealPlansPerMonth: Unlimited,
		PriceAlerts:       Unlimited,
		Collections:       Unlimited,
	},
}

// tierByProductID maps storefront catalog ids onto tiers. Android and
// iOS share the same product id scheme.
var tierByProductID = map[string]enums.Tier{
	"com.app.basic":               enums.TierBasic,
	"com.app.basic.yearly":        enums.TierBasic,
	"com.app.premium":             enums.TierPremium,
	"com.app.premium.yearly":      enums.TierPremium,
	"com.app.professional":        enums.TierProfessional,
	"com.app.professional.yearly": enums.TierProfessional,
}

// LimitsFor returns the caps for a tier, defaulting to FREE when the
// tier is unknown.
func LimitsFor(tier enums.Tier) TierLimits {
	if limits, ok := limitsByTier[tier]; ok {
		return limits
	}
	return limitsByTier[enums.TierFree]
}

// TierForProduct resolves a catalog product id to its tier. Unknown
// products resolve to FREE so an unrecognized purchase never grants a
// paid benefit.
func TierForProduct(productID string) enums.Tier {
	if tier, ok := tierByProductID[productID]; ok {
		return tier
	}
	return enums.TierFree
}

// KnownProduct reports whether the product id exists in the catalog.
func KnownProduct(productID string) bool {
	_, ok := tierByProductID[productID]
	return ok
}
