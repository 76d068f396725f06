package enums

import "fmt"

// SubscriptionStatus is the canonical subscription state shared by both
// storefront ingestion paths. It reflects renewal intent, not current
// access; entitlement checks always compare the expiry against now.
type SubscriptionStatus string

const (
	SubscriptionStatusActive      SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired     SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCanceled    SubscriptionStatus = "CANCELED"
	SubscriptionStatusGracePeriod SubscriptionStatus = "GRACE_PERIOD"
	SubscriptionStatusOnHold      SubscriptionStatus = "ON_HOLD"

	// SubscriptionStatusNone marks the prior state on a subscription's
	// first audit log row. Never a live record status, never parsed.
	SubscriptionStatusNone SubscriptionStatus = "NONE"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusExpired,
	SubscriptionStatusCanceled,
	SubscriptionStatusGracePeriod,
	SubscriptionStatusOnHold,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
