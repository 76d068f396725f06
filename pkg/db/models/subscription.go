package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// Subscription is the canonical subscription record, one per user. Both
// the synchronous verification path and the webhook feed reconcile into
// this row. The tier is denormalized from the product id for fast reads
// and is never authoritative on its own.
type Subscription struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Platform      enums.Platform           `gorm:"column:platform;not null"`
	ProductID     string                   `gorm:"column:product_id;not null"`
	PurchaseToken string                   `gorm:"column:purchase_token;not null;index"`
	Status        enums.SubscriptionStatus `gorm:"column:status;not null"`
	Tier          enums.Tier               `gorm:"column:tier;not null"`
	ExpiryDate    time.Time                `gorm:"column:expiry_date;not null"`
	AutoRenewing  bool                     `gorm:"column:auto_renewing;not null;default:false"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at"`
}
