package reconcile

import (
	"time"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// Notification is a decoded store notification, platform differences
// already flattened away by the webhook decoders.
type Notification struct {
	Platform      enums.Platform
	PurchaseToken string
	Type          enums.NotificationType
	// ProductID is set when the payload names the product (Play RTDN
	// messages carry it as subscriptionId).
	ProductID string
	// ExpiryDate is set when the payload carries one (App Store receipts
	// do, Play RTDN messages do not).
	ExpiryDate *time.Time
	// OccurredAt is the event time assigned by the store, used for
	// most-recent-wins ordering. Never the local arrival time.
	OccurredAt time.Time
}

// targetStatus maps a notification type onto the status it drives the
// subscription toward.
func targetStatus(t enums.NotificationType) enums.SubscriptionStatus {
	switch t {
	case enums.NotificationPurchased, enums.NotificationRenewal, enums.NotificationRecovered:
		return enums.SubscriptionStatusActive
	case enums.NotificationCanceled:
		return enums.SubscriptionStatusCanceled
	case enums.NotificationBillingIssue:
		return enums.SubscriptionStatusGracePeriod
	case enums.NotificationOnHold:
		return enums.SubscriptionStatusOnHold
	default:
		return enums.SubscriptionStatusExpired
	}
}

// renewsAutomatically reports whether the notification implies the store
// will keep charging.
func renewsAutomatically(t enums.NotificationType) bool {
	switch t {
	case enums.NotificationPurchased, enums.NotificationRenewal, enums.NotificationRecovered:
		return true
	default:
		return false
	}
}
