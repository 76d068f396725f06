package enums

import "fmt"

// Feature names a tier-limited capability tracked by the usage counter.
type Feature string

const (
	FeatureRecipes     Feature = "recipes"
	FeatureMealPlans   Feature = "meal_plans"
	FeaturePriceAlerts Feature = "price_alerts"
	FeatureCollections Feature = "collections"
)

var validFeatures = []Feature{
	FeatureRecipes,
	FeatureMealPlans,
	FeaturePriceAlerts,
	FeatureCollections,
}

// String implements fmt.Stringer.
func (f Feature) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f Feature) IsValid() bool {
	for _, candidate := range validFeatures {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeature converts raw input into a Feature.
func ParseFeature(value string) (Feature, error) {
	for _, candidate := range validFeatures {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid feature %q", value)
}
