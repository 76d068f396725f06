package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// OutboxEvent is appended in the same transaction as an accepted state
// transition and later published to Pub/Sub by the outbox publisher.
type OutboxEvent struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventType    enums.OutboxEventType `gorm:"column:event_type;not null"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	Payload      json.RawMessage       `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time            `gorm:"column:published_at"`
	AttemptCount int                   `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string               `gorm:"column:last_error"`
}
