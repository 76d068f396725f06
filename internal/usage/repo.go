package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/plateful/plateful-backend/pkg/db/models"
	"github.com/plateful/plateful-backend/pkg/enums"
)

// Repository exposes feature-usage persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreate returns the user's counters, creating a zeroed row on
// first access. The upsert keeps concurrent first accesses from racing
// into duplicate rows.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.FeatureUsage, error) {
	row := models.FeatureUsage{
		UserID:    userID,
		LastReset: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}

	var stored models.FeatureUsage
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// IncrementWithinLimit bumps the feature's counter only while it stays
// under the cap; a cap of -1 always increments. Returns false when the
// cap is already reached.
func (r *Repository) IncrementWithinLimit(ctx context.Context, userID uuid.UUID, feature enums.Feature, limit int) (bool, error) {
	column, err := columnForFeature(feature)
	if err != nil {
		return false, err
	}

	q := r.db.WithContext(ctx).
		Model(&models.FeatureUsage{}).
		Where("user_id = ?", userID)
	if limit >= 0 {
		q = q.Where(fmt.Sprintf("%s < ?", column), limit)
	}
	res := q.Update(column, gorm.Expr(fmt.Sprintf("%s + 1", column)))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStale returns usage rows whose last reset predates the given
// period start, oldest first.
func (r *Repository) ListStale(ctx context.Context, periodStart time.Time, limit int) ([]models.FeatureUsage, error) {
	var rows []models.FeatureUsage
	err := r.db.WithContext(ctx).
		Where("last_reset < ?", periodStart).
		Order("last_reset ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ResetWithHistory copies the period's final counts into the history
// table and zeroes the live counters, in one transaction per user.
func (r *Repository) ResetWithHistory(ctx context.Context, row models.FeatureUsage, periodStart time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := models.FeatureUsageHistory{
			UserID:             row.UserID,
			RecipesCreated:     row.RecipesCreated,
			MealPlansCreated:   row.MealPlansCreated,
			PriceAlertsSet:     row.PriceAlertsSet,
			CollectionsCreated: row.CollectionsCreated,
			PeriodStart:        row.LastReset,
			PeriodEnd:          periodStart,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}
		return tx.Model(&models.FeatureUsage{}).
			Where("user_id = ? AND last_reset = ?", row.UserID, row.LastReset).
			Updates(map[string]any{
				"recipes_created":     0,
				"meal_plans_created":  0,
				"price_alerts_set":    0,
				"collections_created": 0,
				"last_reset":          periodStart,
			}).Error
	})
}

func columnForFeature(feature enums.Feature) (string, error) {
	switch feature {
	case enums.FeatureRecipes:
		return "recipes_created", nil
	case enums.FeatureMealPlans:
		return "meal_plans_created", nil
	case enums.FeaturePriceAlerts:
		return "price_alerts_set", nil
	case enums.FeatureCollections:
		return "collections_created", nil
	default:
		return "", fmt.Errorf("unknown feature %q", feature)
	}
}
