package enums

import "fmt"

// NotificationType is the canonical event kind both storefront
// notification feeds are decoded into before reconciliation.
type NotificationType string

const (
	NotificationPurchased    NotificationType = "PURCHASED"
	NotificationRenewal      NotificationType = "RENEWAL"
	NotificationRecovered    NotificationType = "RECOVERED"
	NotificationCanceled     NotificationType = "CANCELED"
	NotificationBillingIssue NotificationType = "BILLING_ISSUE"
	NotificationOnHold       NotificationType = "ON_HOLD"
	NotificationExpired      NotificationType = "EXPIRED"
)

var validNotificationTypes = []NotificationType{
	NotificationPurchased,
	NotificationRenewal,
	NotificationRecovered,
	NotificationCanceled,
	NotificationBillingIssue,
	NotificationOnHold,
	NotificationExpired,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is known.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
