package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// PendingWebhookEvent buffers a decoded notification whose purchase
// token did not match any known subscription at delivery time. A cron
// job replays buffered events and discards them once they exceed the
// configured age.
type PendingWebhookEvent struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Platform      enums.Platform  `gorm:"column:platform;not null"`
	PurchaseToken string          `gorm:"column:purchase_token;not null;index"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int             `gorm:"column:attempt_count;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}
