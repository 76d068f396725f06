package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events
// and published to the notification delivery subsystem.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// EntitlementChanged is the event body emitted when a reconciliation
// transition changes what a user is entitled to.
type EntitlementChanged struct {
	UserID    string `json:"userId"`
	Platform  string `json:"platform"`
	ProductID string `json:"productId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
	OldTier   string `json:"oldTier"`
	NewTier   string `json:"newTier"`
	ExpiryAt  string `json:"expiryAt"`
}
