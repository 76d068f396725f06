package subscriptions

import (
	"time"

	"github.com/plateful/plateful-backend/internal/entitlements"
	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
)

// StatusDTO is the subscription status payload returned to clients.
type StatusDTO struct {
	Tier         enums.Tier               `json:"tier"`
	Status       enums.SubscriptionStatus `json:"status"`
	IsActive     bool                     `json:"isActive"`
	Platform     *enums.Platform          `json:"platform,omitempty"`
	ProductID    string                   `json:"productId,omitempty"`
	ExpiryDate   *time.Time               `json:"expiryDate,omitempty"`
	AutoRenewing bool                     `json:"autoRenewing"`
	Limits       entitlements.TierLimits  `json:"limits"`
}

// HistoryEntryDTO is one accepted transition in the user's history.
type HistoryEntryDTO struct {
	Platform   enums.Platform           `json:"platform"`
	ProductID  string                   `json:"productId"`
	OldStatus  enums.SubscriptionStatus `json:"oldStatus"`
	NewStatus  enums.SubscriptionStatus `json:"newStatus"`
	OldTier    enums.Tier               `json:"oldTier"`
	NewTier    enums.Tier               `json:"newTier"`
	OccurredAt time.Time                `json:"occurredAt"`
}

// HistoryPageDTO carries one page of history entries plus the cursor for
// the next page, when there is one.
type HistoryPageDTO struct {
	Entries    []HistoryEntryDTO `json:"entries"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func historyEntryFromModel(row models.SubscriptionLog) HistoryEntryDTO {
	return HistoryEntryDTO{
		Platform:   row.Platform,
		ProductID:  row.ProductID,
		OldStatus:  row.OldStatus,
		NewStatus:  row.NewStatus,
		OldTier:    row.OldTier,
		NewTier:    row.NewTier,
		OccurredAt: row.CreatedAt,
	}
}
