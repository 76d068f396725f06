package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureUsageHistory preserves the final counter values of a closed
// billing period. Written once by the usage reset job, never updated.
type FeatureUsageHistory struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	PeriodStart        time.Time `gorm:"column:period_start;not null"`
	PeriodEnd          time.Time `gorm:"column:period_end;not null"`
	RecipesCreated     int       `gorm:"column:recipes_created;not null"`
	MealPlansCreated   int       `gorm:"column:meal_plans_created;not null"`
	PriceAlertsSet     int       `gorm:"column:price_alerts_set;not null"`
	CollectionsCreated int       `gorm:"column:collections_created;not null"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}
