package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureUsage counts consumption of tier-limited features per user for
// the current billing period. Created lazily with zeroed counters on
// first access; reset (not recreated) at each period boundary.
type FeatureUsage struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	RecipesCreated     int       `gorm:"column:recipes_created;not null;default:0"`
	MealPlansCreated   int       `gorm:"column:meal_plans_created;not null;default:0"`
	PriceAlertsSet     int       `gorm:"column:price_alerts_set;not null;default:0"`
	CollectionsCreated int       `gorm:"column:collections_created;not null;default:0"`
	LastReset          time.Time `gorm:"column:last_reset;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
