package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// SubscriptionLog is an append-only row recorded for every accepted
// state transition. Rows are never mutated or deleted.
type SubscriptionLog struct {
	ID        uint64                   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index:idx_subscription_logs_user_time,priority:1"`
	Platform  enums.Platform           `gorm:"column:platform;not null"`
	ProductID string                   `gorm:"column:product_id;not null"`
	OldStatus enums.SubscriptionStatus `gorm:"column:old_status;not null"`
	NewStatus enums.SubscriptionStatus `gorm:"column:new_status;not null"`
	OldTier   enums.Tier               `gorm:"column:old_tier;not null"`
	NewTier   enums.Tier               `gorm:"column:new_tier;not null"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime;index:idx_subscription_logs_user_time,priority:2"`
}
