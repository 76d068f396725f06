package enums

import "fmt"

// Tier is a named product level with fixed feature limits.
type Tier string

const (
	TierFree         Tier = "FREE"
	TierBasic        Tier = "BASIC"
	TierPremium      Tier = "PREMIUM"
	TierProfessional Tier = "PROFESSIONAL"
)

var validTiers = []Tier{
	TierFree,
	TierBasic,
	TierPremium,
	TierProfessional,
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t Tier) IsValid() bool {
	for _, candidate := range validTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTier converts raw input into a Tier.
func ParseTier(value string) (Tier, error) {
	for _, candidate := range validTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tier %q", value)
}
