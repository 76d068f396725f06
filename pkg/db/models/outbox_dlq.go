package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plateful/plateful-backend/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID      uuid.UUID             `gorm:"column:event_id;type:uuid;not null"`
	EventType    enums.OutboxEventType `gorm:"column:event_type;not null"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	Payload      json.RawMessage       `gorm:"column:payload;type:jsonb;not null"`
	ErrorMessage *string               `gorm:"column:error_message"`
	AttemptCount int                   `gorm:"column:attempt_count;not null;default:0"`
	FailedAt     time.Time             `gorm:"column:failed_at;autoCreateTime"`
}
